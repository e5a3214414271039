package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message is one anonymous submission embedded in its owner's document.
type Message struct {
	ID        primitive.ObjectID `bson:"_id" json:"-"`
	Content   string             `bson:"content" json:"-"`
	CreatedAt time.Time          `bson:"created_at" json:"-"`
}

// MessageView is the wire shape: {_id, content, createdAt}.
type MessageView struct {
	ID        string `json:"_id"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt"`
}

func (m Message) View() MessageView {
	return MessageView{
		ID:        m.ID.Hex(),
		Content:   m.Content,
		CreatedAt: m.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
}
