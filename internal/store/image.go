package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const imageColumns = `id, customer_id, name, type, data_url, created_at`

func scanImage(row rowScanner) (Image, error) {
	var img Image
	var createdAt string
	if err := row.Scan(&img.ID, &img.CustomerID, &img.Name, &img.Type, &img.DataURL, &createdAt); err != nil {
		return Image{}, err
	}
	var err error
	if img.CreatedAt, err = parseTime(createdAt); err != nil {
		return Image{}, fmt.Errorf("image %d created_at: %w", img.ID, err)
	}
	return img, nil
}

func scanImageRows(rows *sql.Rows) (Image, error) {
	img, err := scanImage(rows)
	if err != nil {
		return Image{}, fmt.Errorf("scan image: %w", err)
	}
	return img, nil
}

// AddImages encodes each upload as a data URI and stores it for the
// customer, returning the new ids in upload order.
func (t *Tx) AddImages(customerID int64, uploads []ImageUpload) ([]int64, error) {
	ok, err := t.CustomerExists(customerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &Error{Kind: KindValidation, Op: "add images", Collection: Customers,
			ID: customerID, Err: errors.New("customer does not exist")}
	}

	ids := make([]int64, 0, len(uploads))
	for _, up := range uploads {
		if len(up.Data) == 0 {
			return nil, ValidationError("add images", fmt.Errorf("image %q is empty", up.Name))
		}
		typ := up.Type
		if typ == "" {
			typ = SniffType(up.Data)
		}
		id, err := t.PutImage(Image{
			CustomerID: customerID,
			Name:       up.Name,
			Type:       typ,
			DataURL:    EncodeDataURL(typ, up.Data),
			CreatedAt:  t.s.Now(),
		})
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// PutImage upserts img by primary key.
func (t *Tx) PutImage(img Image) (int64, error) {
	if img.CreatedAt.IsZero() {
		img.CreatedAt = t.s.Now()
	}
	if err := t.s.check("put image", img); err != nil {
		return 0, err
	}

	res, err := t.exec(Images, `
		INSERT INTO images (`+imageColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			customer_id = excluded.customer_id,
			name = excluded.name,
			type = excluded.type,
			data_url = excluded.data_url,
			created_at = excluded.created_at
	`, idArg(img.ID), img.CustomerID, img.Name, img.Type, img.DataURL, formatTime(img.CreatedAt))
	if err != nil {
		return 0, fmt.Errorf("put image: %w", err)
	}
	if img.ID != 0 {
		return img.ID, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("put image: last insert id: %w", err)
	}
	return id, nil
}

// GetImage returns the image with id or a KindNotFound error.
func (t *Tx) GetImage(id int64) (Image, error) {
	row, err := t.queryRow(Images, `SELECT `+imageColumns+` FROM images WHERE id = ?`, id)
	if err != nil {
		return Image{}, err
	}
	img, err := scanImage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Image{}, notFound("get image", Images, id)
	}
	if err != nil {
		return Image{}, fmt.Errorf("get image: %w", err)
	}
	return img, nil
}

// ImagesByCustomer returns a customer's images in key order.
func (t *Tx) ImagesByCustomer(customerID int64) ([]Image, error) {
	rows, err := t.query(Images, `
		SELECT `+imageColumns+` FROM images WHERE customer_id = ? ORDER BY id ASC
	`, customerID)
	if err != nil {
		return nil, fmt.Errorf("images by customer: %w", err)
	}
	return collect(rows, scanImageRows)
}

// DeleteImage removes one image. Absent ids are a no-op.
func (t *Tx) DeleteImage(id int64) error {
	if _, err := t.exec(Images, `DELETE FROM images WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete image: %w", err)
	}
	return nil
}

// ListImages returns every image in key order.
func (t *Tx) ListImages() ([]Image, error) {
	rows, err := t.query(Images, `SELECT `+imageColumns+` FROM images ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	return collect(rows, scanImageRows)
}

// ImagesAfter returns up to limit images with id > afterID in key order.
// It pages the images collection for bounded-memory export.
func (t *Tx) ImagesAfter(afterID int64, limit int) ([]Image, error) {
	rows, err := t.query(Images, `
		SELECT `+imageColumns+` FROM images WHERE id > ? ORDER BY id ASC LIMIT ?
	`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("images after: %w", err)
	}
	return collect(rows, scanImageRows)
}

// CountImages returns the number of stored images.
func (t *Tx) CountImages() (int, error) {
	row, err := t.queryRow(Images, `SELECT COUNT(*) FROM images`)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count images: %w", err)
	}
	return n, nil
}

var imageScope = []Collection{Images, Customers}

// AddImages stores uploads for a customer in one unit.
func (s *Store) AddImages(ctx context.Context, customerID int64, uploads []ImageUpload) ([]int64, error) {
	return Run(ctx, s, imageScope, ReadWrite, func(tx *Tx) ([]int64, error) {
		return tx.AddImages(customerID, uploads)
	})
}

// GetImage returns the image with id.
func (s *Store) GetImage(ctx context.Context, id int64) (Image, error) {
	return Run(ctx, s, imageScope, ReadOnly, func(tx *Tx) (Image, error) {
		return tx.GetImage(id)
	})
}

// ImagesByCustomer returns a customer's images.
func (s *Store) ImagesByCustomer(ctx context.Context, customerID int64) ([]Image, error) {
	return Run(ctx, s, imageScope, ReadOnly, func(tx *Tx) ([]Image, error) {
		return tx.ImagesByCustomer(customerID)
	})
}

// DeleteImage removes one image.
func (s *Store) DeleteImage(ctx context.Context, id int64) error {
	_, err := Run(ctx, s, imageScope, ReadWrite, func(tx *Tx) (struct{}, error) {
		return struct{}{}, tx.DeleteImage(id)
	})
	return err
}

// ListImages returns every image.
func (s *Store) ListImages(ctx context.Context) ([]Image, error) {
	return Run(ctx, s, imageScope, ReadOnly, func(tx *Tx) ([]Image, error) {
		return tx.ListImages()
	})
}

// ImagesAfter pages images by key.
func (s *Store) ImagesAfter(ctx context.Context, afterID int64, limit int) ([]Image, error) {
	return Run(ctx, s, imageScope, ReadOnly, func(tx *Tx) ([]Image, error) {
		return tx.ImagesAfter(afterID, limit)
	})
}

// CountImages returns the number of stored images.
func (s *Store) CountImages(ctx context.Context) (int, error) {
	return Run(ctx, s, imageScope, ReadOnly, func(tx *Tx) (int, error) {
		return tx.CountImages()
	})
}
