package models

import (
	"sort"

	"github.com/mikepea/utubs/pkg/utubs/api"
	"gorm.io/gorm"
)

// FindMembership loads the membership of userID in utubID.
func FindMembership(db *gorm.DB, utubID, userID uint) (UTubMember, error) {
	var m UTubMember
	err := db.Where("utub_id = ? AND user_id = ?", utubID, userID).First(&m).Error
	return m, err
}

// FindURL loads a URL of a UTub with its tags.
func FindURL(db *gorm.DB, utubID, urlID uint) (UTubURL, error) {
	var u UTubURL
	err := db.Preload("Tags").Where("utub_id = ?", utubID).First(&u, urlID).Error
	return u, err
}

// FindTag loads a tag of a UTub.
func FindTag(db *gorm.DB, utubID, tagID uint) (UTubTag, error) {
	var t UTubTag
	err := db.Where("utub_id = ?", utubID).First(&t, tagID).Error
	return t, err
}

// ToAPI converts u for the given viewer.
func (u UTubURL) ToAPI(viewer UTubMember) api.URL {
	ids := make([]uint, 0, len(u.Tags))
	for _, t := range u.Tags {
		ids = append(ids, t.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return api.URL{
		ID:        u.ID,
		Title:     u.Title,
		URLString: u.URLString,
		TagIDs:    ids,
		CanMutate: u.CanMutate(viewer),
	}
}

// ToAPI converts t.
func (t UTubTag) ToAPI() api.Tag {
	return api.Tag{ID: t.ID, TagString: t.Label}
}

// PruneTags deletes every tag in tags that no URL carries any more and
// returns the ids it deleted. A UTub tag lives only while a URL uses it.
func PruneTags(tx *gorm.DB, tags []UTubTag) ([]uint, error) {
	var pruned []uint
	for _, t := range tags {
		if tx.Model(&t).Association("URLs").Count() > 0 {
			continue
		}
		if err := tx.Delete(&UTubTag{}, t.ID).Error; err != nil {
			return pruned, err
		}
		pruned = append(pruned, t.ID)
	}
	return pruned, nil
}
