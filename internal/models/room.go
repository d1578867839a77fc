package models

import (
	"gorm.io/gorm"
)

type Room struct {
	gorm.Model
	Name     string `gorm:"uniqueIndex" json:"name"`
	Capacity int    `json:"capacity"`
}
