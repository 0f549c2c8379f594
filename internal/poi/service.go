package poi

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Carlosrossos/dlh-backend/internal/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrNotFound = errors.New("poi not found")
var ErrCommentNotFound = errors.New("comment not found")

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

const poiColumns = `id, name, category, massif, lat, lng, description, altitude,
	       COALESCE(sun_exposition,''), likes, created_by, status, created_at, updated_at`

func (s *Service) List(ctx context.Context, filter ListFilter) ([]POI, error) {
	status := filter.Status
	if status == "" {
		status = StatusApproved
	}

	where := []string{"status=$1"}
	args := []any{status}
	if filter.Category != "" && filter.Category != "all" {
		args = append(args, filter.Category)
		where = append(where, fmt.Sprintf("category=$%d", len(args)))
	}
	if filter.Massif != "" && filter.Massif != "all" {
		args = append(args, filter.Massif)
		where = append(where, fmt.Sprintf("massif=$%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+poiColumns+`
		FROM pois
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY created_at DESC
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pois []POI
	var ids []string
	for rows.Next() {
		p, err := scanPOI(rows)
		if err != nil {
			return nil, err
		}
		ids = append(ids, p.ID)
		pois = append(pois, p)
	}

	photos, err := s.loadPhotos(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range pois {
		pois[i].Photos = photos[pois[i].ID]
	}
	return pois, nil
}

func (s *Service) Get(ctx context.Context, id string) (POI, error) {
	p, err := s.getBase(ctx, id)
	if err != nil {
		return POI{}, err
	}

	photos, err := s.loadPhotos(ctx, []string{id})
	if err != nil {
		return POI{}, err
	}
	p.Photos = photos[id]

	comments, err := s.Comments(ctx, id)
	if err != nil {
		return POI{}, err
	}
	p.Comments = comments
	return p, nil
}

// Insert writes a full POI record, photos included. Used directly by the
// legacy creation path and by moderation when a new_poi contribution is
// approved.
func (s *Service) Insert(ctx context.Context, p POI) (POI, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = StatusPending
	}

	var expo any
	if p.SunExposition != "" {
		expo = p.SunExposition
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO pois (id, name, category, massif, lat, lng, description, altitude, sun_exposition, created_by, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at, updated_at
	`, p.ID, p.Name, p.Category, p.Massif, p.Coordinates.Lat, p.Coordinates.Lng, p.Description, p.Altitude, expo, p.CreatedBy, p.Status)
	if err := row.Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
		return POI{}, err
	}

	if len(p.Photos) > MaxPhotos {
		p.Photos = p.Photos[:MaxPhotos]
	}
	for _, url := range p.Photos {
		if err := s.AppendPhoto(ctx, p.ID, url); err != nil {
			return POI{}, err
		}
	}
	return p, nil
}

// ToggleLike adds or removes the user from the liked-by set. The membership
// write is the gate: the counter only moves when a row was actually inserted
// or deleted, so concurrent toggles cannot drift it from the set.
func (s *Service) ToggleLike(ctx context.Context, poiID, userID string) (int, bool, error) {
	if err := s.ensureExists(ctx, poiID); err != nil {
		return 0, false, err
	}

	tag, err := s.db.Exec(ctx, `
		INSERT INTO poi_likes (poi_id, user_id) VALUES ($1,$2)
		ON CONFLICT DO NOTHING
	`, poiID, userID)
	if err != nil {
		return 0, false, err
	}

	var likes int
	if tag.RowsAffected() == 1 {
		row := s.db.QueryRow(ctx, `UPDATE pois SET likes=likes+1, updated_at=NOW() WHERE id=$1 RETURNING likes`, poiID)
		if err := row.Scan(&likes); err != nil {
			return 0, false, err
		}
		return likes, true, nil
	}

	if _, err := s.db.Exec(ctx, `DELETE FROM poi_likes WHERE poi_id=$1 AND user_id=$2`, poiID, userID); err != nil {
		return 0, false, err
	}
	row := s.db.QueryRow(ctx, `UPDATE pois SET likes=GREATEST(likes-1,0), updated_at=NOW() WHERE id=$1 RETURNING likes`, poiID)
	if err := row.Scan(&likes); err != nil {
		return 0, false, err
	}
	return likes, false, nil
}

// ToggleBookmark is symmetric to ToggleLike but lives on the user side.
func (s *Service) ToggleBookmark(ctx context.Context, poiID, userID string) (bool, int, error) {
	if err := s.ensureExists(ctx, poiID); err != nil {
		return false, 0, err
	}

	tag, err := s.db.Exec(ctx, `
		INSERT INTO bookmarks (user_id, poi_id) VALUES ($1,$2)
		ON CONFLICT DO NOTHING
	`, userID, poiID)
	if err != nil {
		return false, 0, err
	}

	bookmarked := tag.RowsAffected() == 1
	if !bookmarked {
		if _, err := s.db.Exec(ctx, `DELETE FROM bookmarks WHERE user_id=$1 AND poi_id=$2`, userID, poiID); err != nil {
			return false, 0, err
		}
	}

	var count int
	row := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM bookmarks WHERE user_id=$1`, userID)
	if err := row.Scan(&count); err != nil {
		return false, 0, err
	}
	return bookmarked, count, nil
}

func (s *Service) Bookmarks(ctx context.Context, userID string) ([]POI, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+poiColumns+`
		FROM pois
		WHERE id IN (SELECT poi_id FROM bookmarks WHERE user_id=$1)
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pois []POI
	for rows.Next() {
		p, err := scanPOI(rows)
		if err != nil {
			return nil, err
		}
		pois = append(pois, p)
	}
	return pois, nil
}

func (s *Service) Comments(ctx context.Context, poiID string) ([]Comment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, author, user_id, text, created_at
		FROM poi_comments WHERE poi_id=$1
		ORDER BY created_at
	`, poiID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []Comment
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.Author, &c.UserID, &c.Text, &c.Date); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, nil
}

func (s *Service) AppendComment(ctx context.Context, poiID string, c Comment) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO poi_comments (id, poi_id, author, user_id, text, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, c.ID, poiID, c.Author, c.UserID, c.Text, c.Date)
	return err
}

// AppendPhoto is idempotent on (poi_id, url) so a retried approval cannot
// attach the same photo twice.
func (s *Service) AppendPhoto(ctx context.Context, poiID, url string) error {
	var count int
	row := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM poi_photos WHERE poi_id=$1`, poiID)
	if err := row.Scan(&count); err != nil {
		return err
	}
	if count >= MaxPhotos {
		return fmt.Errorf("poi %s already has %d photos", poiID, MaxPhotos)
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO poi_photos (id, poi_id, url) VALUES ($1,$2,$3)
		ON CONFLICT (poi_id, url) DO NOTHING
	`, uuid.NewString(), poiID, url)
	return err
}

// ApplyPatch shallow-merges the accepted edit fields onto the record and
// rewrites the editable columns.
func (s *Service) ApplyPatch(ctx context.Context, poiID string, changes map[string]any) error {
	p, err := s.getBase(ctx, poiID)
	if err != nil {
		return err
	}

	for field, value := range changes {
		switch field {
		case "name":
			if v, ok := value.(string); ok {
				p.Name = v
			}
		case "description":
			if v, ok := value.(string); ok {
				p.Description = v
			}
		case "sunExposition":
			if v, ok := value.(string); ok {
				p.SunExposition = v
			}
		case "altitude":
			switch v := value.(type) {
			case float64:
				p.Altitude = int(v)
			case int:
				p.Altitude = v
			}
		}
	}

	_, err = s.db.Exec(ctx, `
		UPDATE pois
		SET name=$2, description=$3, altitude=$4, sun_exposition=NULLIF($5,''), updated_at=NOW()
		WHERE id=$1
	`, p.ID, p.Name, p.Description, p.Altitude, p.SunExposition)
	return err
}

func (s *Service) DeleteComment(ctx context.Context, poiID, commentID string) (Comment, error) {
	if err := s.ensureExists(ctx, poiID); err != nil {
		return Comment{}, err
	}

	row := s.db.QueryRow(ctx, `
		SELECT id, author, user_id, text, created_at
		FROM poi_comments WHERE poi_id=$1 AND id=$2
	`, poiID, commentID)
	var c Comment
	if err := row.Scan(&c.ID, &c.Author, &c.UserID, &c.Text, &c.Date); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Comment{}, ErrCommentNotFound
		}
		return Comment{}, err
	}

	if _, err := s.db.Exec(ctx, `DELETE FROM poi_comments WHERE poi_id=$1 AND id=$2`, poiID, commentID); err != nil {
		return Comment{}, err
	}
	return c, nil
}

func (s *Service) Name(ctx context.Context, poiID string) (string, error) {
	var name string
	row := s.db.QueryRow(ctx, `SELECT name FROM pois WHERE id=$1`, poiID)
	if err := row.Scan(&name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return name, nil
}

func (s *Service) getBase(ctx context.Context, id string) (POI, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+poiColumns+`
		FROM pois WHERE id=$1
	`, id)
	p, err := scanPOI(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return POI{}, ErrNotFound
		}
		return POI{}, err
	}
	return p, nil
}

func (s *Service) ensureExists(ctx context.Context, id string) error {
	var ok bool
	row := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM pois WHERE id=$1)`, id)
	if err := row.Scan(&ok); err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *Service) loadPhotos(ctx context.Context, poiIDs []string) (map[string][]string, error) {
	if len(poiIDs) == 0 {
		return map[string][]string{}, nil
	}
	rows, err := s.db.Query(ctx, `
		SELECT poi_id, url
		FROM poi_photos WHERE poi_id = ANY($1)
		ORDER BY created_at
	`, poiIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	photos := map[string][]string{}
	for rows.Next() {
		var poiID, url string
		if err := rows.Scan(&poiID, &url); err != nil {
			return nil, err
		}
		photos[poiID] = append(photos[poiID], url)
	}
	return photos, nil
}

func scanPOI(row pgx.Row) (POI, error) {
	var p POI
	err := row.Scan(&p.ID, &p.Name, &p.Category, &p.Massif, &p.Coordinates.Lat, &p.Coordinates.Lng,
		&p.Description, &p.Altitude, &p.SunExposition, &p.Likes, &p.CreatedBy, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}
