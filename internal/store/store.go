// Package store persists videos, their segments and generated reports with GORM.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a referenced row does not exist.
var ErrNotFound = errors.New("not found")

// MaxPageSize caps list queries.
const MaxPageSize = 100

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store is the GORM backed persistence layer.
type Store struct {
	db  *gorm.DB
	log *logrus.Entry
}

// Options controls how Open connects.
type Options struct {
	Driver string
	DSN    string
	// ConnectTimeout bounds how long Open waits for the database to answer.
	ConnectTimeout time.Duration
	Log            *logrus.Entry
}

// Open connects to the database, waiting for it to come up, and migrates the schema.
func Open(ctx context.Context, opts Options) (*Store, error) {
	log := opts.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("component", "store")

	dialector, err := dialectorFor(opts.Driver, opts.DSN)
	if err != nil {
		return nil, err
	}

	var db *gorm.DB
	connect := func() error {
		conn, err := gorm.Open(dialector, &gorm.Config{
			TranslateError: true,
			Logger:         newGormLogger(log),
		})
		if err != nil {
			log.WithError(err).Warn("waiting for database")
			return err
		}
		sqlDB, err := conn.DB()
		if err != nil {
			return backoff.Permanent(err)
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			log.WithError(err).Warn("waiting for database")
			_ = sqlDB.Close()
			return err
		}
		db = conn
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = opts.ConnectTimeout
	if b.MaxElapsedTime <= 0 {
		b.MaxElapsedTime = 30 * time.Second
	}
	if err := backoff.Retry(connect, backoff.WithContext(b, ctx)); err != nil {
		return nil, fmt.Errorf("connecting to %s database: %w", opts.Driver, err)
	}

	if err := db.WithContext(ctx).AutoMigrate(&Video{}, &Segment{}, &Report{}); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	log.WithField("driver", opts.Driver).Debug("database ready")
	return &Store{db: db, log: log}, nil
}

func dialectorFor(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case DriverSQLite, "":
		if dsn == "" {
			return nil, errors.New("sqlite: empty dsn")
		}
		return sqlite.Open(withForeignKeys(dsn)), nil
	case DriverPostgres:
		if dsn == "" {
			return nil, errors.New("postgres: empty dsn")
		}
		return postgres.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

// withForeignKeys turns on sqlite foreign key enforcement for every pooled connection.
func withForeignKeys(dsn string) string {
	if strings.Contains(dsn, "foreign_keys") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)"
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// SaveVideo creates the video and its segments in one transaction. When a video
// with the same YouTube ID already exists it is returned unchanged and existing
// is true.
func (s *Store) SaveVideo(ctx context.Context, video *Video, segments []Segment) (saved *Video, existing bool, err error) {
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var found Video
		err := tx.Where("youtube_id = ?", video.YouTubeID).Take(&found).Error
		switch {
		case err == nil:
			saved, existing = &found, true
			return nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("looking up video %s: %w", video.YouTubeID, err)
		}

		v := *video
		v.Segments, v.Reports = nil, nil
		if err := tx.Omit("Segments", "Reports").Create(&v).Error; err != nil {
			return fmt.Errorf("creating video: %w", err)
		}

		if len(segments) > 0 {
			rows := make([]Segment, len(segments))
			for i, seg := range segments {
				seg.ID = 0
				seg.VideoID = v.ID
				rows[i] = seg
			}
			if err := tx.CreateInBatches(rows, 100).Error; err != nil {
				return fmt.Errorf("creating segments: %w", err)
			}
			v.Segments = rows
		}

		saved = &v
		return nil
	})
	if err != nil {
		// Lost a race against a concurrent ingestion of the same video.
		if isUniqueViolation(err) {
			found, lookupErr := s.VideoByYouTubeID(ctx, video.YouTubeID)
			if lookupErr == nil {
				return found, true, nil
			}
		}
		return nil, false, err
	}

	if existing {
		s.log.WithField("youtube_id", video.YouTubeID).Info("video already stored")
	}
	return saved, existing, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Video returns a video by primary key, without segments.
func (s *Store) Video(ctx context.Context, id uint) (*Video, error) {
	var v Video
	if err := s.db.WithContext(ctx).Take(&v, id).Error; err != nil {
		return nil, notFound(err, "video %d", id)
	}
	return &v, nil
}

// VideoByYouTubeID returns a video by its YouTube ID.
func (s *Store) VideoByYouTubeID(ctx context.Context, youtubeID string) (*Video, error) {
	var v Video
	if err := s.db.WithContext(ctx).Where("youtube_id = ?", youtubeID).Take(&v).Error; err != nil {
		return nil, notFound(err, "video %s", youtubeID)
	}
	return &v, nil
}

// Videos lists videos, newest first.
func (s *Store) Videos(ctx context.Context, skip, limit int) ([]Video, error) {
	var videos []Video
	err := s.db.WithContext(ctx).
		Order("created_at DESC").Order("id DESC").
		Offset(max(skip, 0)).Limit(pageSize(limit)).
		Find(&videos).Error
	if err != nil {
		return nil, fmt.Errorf("listing videos: %w", err)
	}
	return videos, nil
}

// DeleteVideo removes a video together with its segments and reports.
func (s *Store) DeleteVideo(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var v Video
		if err := tx.Select("id").Take(&v, id).Error; err != nil {
			return notFound(err, "video %d", id)
		}
		if err := tx.Where("video_id = ?", id).Delete(&Report{}).Error; err != nil {
			return fmt.Errorf("deleting reports of video %d: %w", id, err)
		}
		if err := tx.Where("video_id = ?", id).Delete(&Segment{}).Error; err != nil {
			return fmt.Errorf("deleting segments of video %d: %w", id, err)
		}
		if err := tx.Delete(&Video{}, id).Error; err != nil {
			return fmt.Errorf("deleting video %d: %w", id, err)
		}
		return nil
	})
}

// Segments returns a video's segments ordered by start time.
func (s *Store) Segments(ctx context.Context, videoID uint) ([]Segment, error) {
	var segments []Segment
	err := s.db.WithContext(ctx).
		Where("video_id = ?", videoID).
		Order("start_time ASC").Order("id ASC").
		Find(&segments).Error
	if err != nil {
		return nil, fmt.Errorf("listing segments of video %d: %w", videoID, err)
	}
	return segments, nil
}

// Segment returns one segment by primary key.
func (s *Store) Segment(ctx context.Context, id uint) (*Segment, error) {
	var seg Segment
	if err := s.db.WithContext(ctx).Take(&seg, id).Error; err != nil {
		return nil, notFound(err, "segment %d", id)
	}
	return &seg, nil
}

// DeleteSegment removes one segment.
func (s *Store) DeleteSegment(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&Segment{}, id)
	if res.Error != nil {
		return fmt.Errorf("deleting segment %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("segment %d: %w", id, ErrNotFound)
	}
	return nil
}

// CreateReport stores a report for an existing video.
func (s *Store) CreateReport(ctx context.Context, report *Report) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var v Video
		if err := tx.Select("id").Take(&v, report.VideoID).Error; err != nil {
			return notFound(err, "video %d", report.VideoID)
		}
		if err := tx.Create(report).Error; err != nil {
			return fmt.Errorf("creating report: %w", err)
		}
		return nil
	})
}

// Report returns one report by primary key.
func (s *Store) Report(ctx context.Context, id uint) (*Report, error) {
	var r Report
	if err := s.db.WithContext(ctx).Take(&r, id).Error; err != nil {
		return nil, notFound(err, "report %d", id)
	}
	return &r, nil
}

// ReportFilter narrows a report listing. Zero values match everything.
type ReportFilter struct {
	VideoID    uint
	FormatType string
	Skip       int
	Limit      int
}

// Reports lists reports, newest first.
func (s *Store) Reports(ctx context.Context, f ReportFilter) ([]Report, error) {
	q := s.db.WithContext(ctx).Model(&Report{})
	if f.VideoID != 0 {
		q = q.Where("video_id = ?", f.VideoID)
	}
	if f.FormatType != "" {
		q = q.Where("format_type = ?", f.FormatType)
	}

	var reports []Report
	err := q.Order("created_at DESC").Order("id DESC").
		Offset(max(f.Skip, 0)).Limit(pageSize(f.Limit)).
		Find(&reports).Error
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	return reports, nil
}

// DeleteReport removes one report.
func (s *Store) DeleteReport(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&Report{}, id)
	if res.Error != nil {
		return fmt.Errorf("deleting report %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("report %d: %w", id, ErrNotFound)
	}
	return nil
}

func pageSize(limit int) int {
	if limit <= 0 || limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}

func notFound(err error, format string, args ...any) error {
	what := fmt.Sprintf(format, args...)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("loading %s: %w", what, err)
}
