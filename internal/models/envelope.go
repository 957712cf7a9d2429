package models

import "time"

// ChapterEnvelope is the at-rest JSON shape of one vault file. Content
// holds the encrypted record string (iv:authTag:ciphertext hex); all other
// fields are plaintext metadata.
type ChapterEnvelope struct {
	ID          string        `json:"id"`
	NovelID     string        `json:"novel_id"`
	Title       string        `json:"title"`
	Content     string        `json:"content"`
	ContentType ContentType   `json:"content_type"`
	Order       int           `json:"order"`
	Status      ChapterStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Chapter materializes the envelope with its decrypted plaintext content
// and the word count derived from it.
func (e *ChapterEnvelope) Chapter(plainContent string, wordCount int) *Chapter {
	return &Chapter{
		ID:          e.ID,
		NovelID:     e.NovelID,
		Title:       e.Title,
		Content:     plainContent,
		ContentType: e.ContentType,
		WordCount:   wordCount,
		Order:       e.Order,
		Status:      e.Status,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}
