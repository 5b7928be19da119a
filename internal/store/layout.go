package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/ayusman/pinchgrab/internal/geom"
	"github.com/ayusman/pinchgrab/internal/scene"
)

// LayoutObject is one stored object of the initial scene. Order is its
// hit-test priority; lower comes first.
type LayoutObject struct {
	ID        string
	Asset     string
	X         float64
	Y         float64
	Order     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SceneObject converts the row to a scene object.
func (o *LayoutObject) SceneObject() scene.Object {
	return scene.Object{
		ID:       o.ID,
		Asset:    o.Asset,
		Position: geom.Point{X: o.X, Y: o.Y},
	}
}

// LayoutRepository provides CRUD operations for the stored layout.
type LayoutRepository struct {
	db *sql.DB
}

// Layout returns the layout repository for this store.
func (s *Store) Layout() *LayoutRepository {
	return &LayoutRepository{db: s.db}
}

// Create appends an object after every existing one.
func (r *LayoutRepository) Create(o *LayoutObject) error {
	now := time.Now()
	o.CreatedAt = now
	o.UpdatedAt = now

	err := r.db.QueryRow(`SELECT COALESCE(MAX(ord), -1) + 1 FROM layout_objects`).Scan(&o.Order)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(
		`INSERT INTO layout_objects (id, asset, x, y, ord, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.Asset, o.X, o.Y, o.Order, o.CreatedAt, o.UpdatedAt,
	)
	return err
}

// GetByID retrieves an object by its ID.
func (r *LayoutRepository) GetByID(id string) (*LayoutObject, error) {
	o := &LayoutObject{}

	err := r.db.QueryRow(
		`SELECT id, asset, x, y, ord, created_at, updated_at
		 FROM layout_objects WHERE id = ?`,
		id,
	).Scan(&o.ID, &o.Asset, &o.X, &o.Y, &o.Order, &o.CreatedAt, &o.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return o, nil
}

// List retrieves all objects in hit-test order.
func (r *LayoutRepository) List() ([]*LayoutObject, error) {
	rows, err := r.db.Query(
		`SELECT id, asset, x, y, ord, created_at, updated_at
		 FROM layout_objects ORDER BY ord ASC, id ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var objects []*LayoutObject
	for rows.Next() {
		o := &LayoutObject{}
		if err := rows.Scan(&o.ID, &o.Asset, &o.X, &o.Y, &o.Order, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		objects = append(objects, o)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return objects, nil
}

// Objects returns the stored layout as scene objects, in order.
func (r *LayoutRepository) Objects() ([]scene.Object, error) {
	rows, err := r.List()
	if err != nil {
		return nil, err
	}

	out := make([]scene.Object, 0, len(rows))
	for _, o := range rows {
		out = append(out, o.SceneObject())
	}
	return out, nil
}

// Update changes an object's asset and position. Order is kept.
func (r *LayoutRepository) Update(o *LayoutObject) error {
	o.UpdatedAt = time.Now()

	result, err := r.db.Exec(
		`UPDATE layout_objects SET asset = ?, x = ?, y = ?, updated_at = ?
		 WHERE id = ?`,
		o.Asset, o.X, o.Y, o.UpdatedAt, o.ID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes an object by its ID.
func (r *LayoutRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM layout_objects WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
