package specification

import "gorm.io/gorm"

type ByCollection struct {
	Collection string
}

func (s ByCollection) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("collection = ?", s.Collection)
}

type ByItemID struct {
	Collection string
	ID         string
}

func (s ByItemID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("collection = ? AND id = ?", s.Collection, s.ID)
}
