package model

import "time"

// Follower subscribes a user to the changes of one entity, or to every
// entity of a model when ModelID is zero.
type Follower struct {
	ID        int       `gorm:"primaryKey;autoIncrement" json:"id"`
	ModelName string    `gorm:"type:varchar(32);not null;uniqueIndex:follower_unique_ix" json:"model_name"`
	ModelID   int       `gorm:"not null;uniqueIndex:follower_unique_ix" json:"model_id"`
	UserID    int       `gorm:"not null;uniqueIndex:follower_unique_ix;index" json:"user_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for Follower.
func (Follower) TableName() string { return "follower" }

// IsCatchAll reports whether this subscription covers every entity of the
// model.
func (f *Follower) IsCatchAll() bool { return f.ModelID == 0 }
