package store

import (
	"time"

	"gorm.io/datatypes"
)

// Video is an ingested YouTube video and its analysis.
type Video struct {
	ID              uint                        `gorm:"primaryKey" json:"id"`
	YouTubeID       string                      `gorm:"column:youtube_id;type:varchar(32);not null;uniqueIndex" json:"youtube_id"`
	Title           string                      `gorm:"type:varchar(255);not null" json:"title"`
	URL             string                      `gorm:"type:varchar(255);not null" json:"url"`
	ChannelName     string                      `gorm:"type:varchar(255)" json:"channel_name,omitempty"`
	PublishedAt     *time.Time                  `json:"published_at,omitempty"`
	DurationSeconds *int                        `json:"duration_seconds,omitempty"`
	Summary         string                      `gorm:"type:text" json:"summary,omitempty"`
	Category        string                      `gorm:"type:varchar(100)" json:"category,omitempty"`
	Topics          datatypes.JSONSlice[string] `json:"topics,omitempty"`
	Processed       bool                        `gorm:"not null;default:false" json:"processed"`
	CreatedAt       time.Time                   `json:"created_at"`
	UpdatedAt       time.Time                   `json:"updated_at"`

	Segments []Segment `gorm:"constraint:OnDelete:CASCADE;" json:"segments,omitempty"`
	Reports  []Report  `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
}

func (Video) TableName() string {
	return "videos"
}

// Segment is a time-bounded slice of a video's transcript.
type Segment struct {
	ID             uint                        `gorm:"primaryKey" json:"id"`
	VideoID        uint                        `gorm:"not null;index" json:"video_id"`
	StartTime      float64                     `gorm:"not null" json:"start_time"`
	EndTime        float64                     `gorm:"not null" json:"end_time"`
	Transcript     string                      `gorm:"type:text;not null" json:"transcript"`
	Subcategory    string                      `gorm:"type:varchar(100)" json:"subcategory,omitempty"`
	ContentSummary string                      `gorm:"type:text" json:"content_summary,omitempty"`
	Keywords       datatypes.JSONSlice[string] `json:"keywords,omitempty"`
	CreatedAt      time.Time                   `json:"created_at"`
	UpdatedAt      time.Time                   `json:"updated_at"`
}

func (Segment) TableName() string {
	return "video_segments"
}

// Report is a drafted document generated from a video's analysis.
type Report struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	VideoID    uint      `gorm:"not null;index" json:"video_id"`
	Title      string    `gorm:"type:varchar(255);not null" json:"title"`
	FormatType string    `gorm:"type:varchar(50);not null;index" json:"format_type"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Report) TableName() string {
	return "reports"
}
