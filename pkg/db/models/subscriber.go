package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Subscriber struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Email        string    `gorm:"column:email;type:text;not null;uniqueIndex:ux_subscribers_email" json:"email"`
	SubscribedAt time.Time `gorm:"column:subscribed_at;autoCreateTime" json:"subscribedAt"`
}

func (s *Subscriber) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}
