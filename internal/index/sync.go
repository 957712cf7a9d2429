package index

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hollevik/vellum/internal/codec"
	"github.com/hollevik/vellum/internal/models"
	"github.com/hollevik/vellum/internal/richtext"
	"github.com/hollevik/vellum/internal/storage"
)

// Sync walks the vault and brings the index up to date:
//   - new/changed envelopes are decrypted, recounted, and upserted
//   - envelopes removed from disk are deleted from the index
func Sync(db *DB, store storage.Provider, cdc *codec.Codec, logger *slog.Logger) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := indexEnvelope(db, cdc, m.Path, m.Checksum, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", m.Path))
		}
	}

	// Remove stale entries.
	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if _, err := db.DeleteByPath(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// indexEnvelope decodes an envelope, derives its word count from the
// decrypted content, and upserts the chapter row.
func indexEnvelope(db *DB, cdc *codec.Codec, path, checksum string, data []byte) error {
	var env models.ChapterEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("index: decode envelope %s: %w", path, err)
	}

	plain := env.Content
	if codec.LooksEncrypted(env.Content) {
		decrypted, err := cdc.DecryptString(env.Content)
		if err != nil {
			return fmt.Errorf("index: decrypt %s: %w", path, err)
		}
		plain = decrypted
	}

	return db.UpsertChapter(ChapterRow{
		ID:        env.ID,
		NovelID:   env.NovelID,
		Path:      path,
		Title:     env.Title,
		WordCount: richtext.CountWords(plain, env.ContentType),
		Order:     env.Order,
		Status:    env.Status,
		Checksum:  checksum,
		UpdatedAt: env.UpdatedAt,
	})
}
