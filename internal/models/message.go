package models

import "time"

type Message struct {
	ID       int64      `json:"id"`
	RentalID int64      `json:"rental_id"`
	SenderID int64      `json:"sender_id"`
	Content  string     `json:"content"`
	SentAt   time.Time  `json:"sent_at"`
	Read     bool       `json:"read"`
	ReadAt   *time.Time `json:"read_at"`
}
