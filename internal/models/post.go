package models

import "time"

// Post is a blog article addressed by its slug.
type Post struct {
	BaseModel

	Slug        string     `gorm:"size:160;uniqueIndex;not null" json:"slug"`
	Title       string     `gorm:"size:200;not null" json:"title"`
	Body        string     `gorm:"type:text" json:"body"`
	AuthorID    string     `gorm:"type:uuid;index" json:"author_id"`
	PublishedAt *time.Time `gorm:"index" json:"published_at"`
}

// Published reports whether readers can see and comment on the post.
func (p *Post) Published() bool {
	return p != nil && p.PublishedAt != nil
}

// Comment is a reader comment on a post.
type Comment struct {
	BaseModel

	PostID   string `gorm:"type:uuid;index;not null" json:"post_id"`
	AuthorID string `gorm:"type:uuid;index;not null" json:"author_id"`
	Body     string `gorm:"type:text;not null" json:"body"`

	Author *User `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
}
