package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/NordCoder/GetMoreSeo/internal/domain/blog"
)

var _ blog.Repo = (*BlogRepo)(nil)

type BlogRepo struct{ db *DB }

func NewBlogRepo(db *DB) *BlogRepo { return &BlogRepo{db: db} }

const (
	qBlogInsert = `
INSERT INTO blog_posts (id, user_id, schedule_id, website_url, title, content, research, model)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING created_at;`

	qBlogByID = `
SELECT id, user_id, schedule_id, website_url, title, content, research, model, created_at
FROM blog_posts
WHERE id = $1;`

	qBlogByUser = `
SELECT id, user_id, schedule_id, website_url, title, content, research, model, created_at
FROM blog_posts
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2;`
)

func scanPost(row pgx.Row, p *blog.Post) error {
	if err := row.Scan(&p.ID, &p.UserID, &p.ScheduleID, &p.WebsiteURL, &p.Title, &p.Content,
		&p.Research, &p.Model, &p.CreatedAt); err != nil {
		return mapErr("scan blog post", err)
	}
	return nil
}

func (r *BlogRepo) Insert(ctx context.Context, p *blog.Post) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	err := r.db.execQueryer(ctx).QueryRow(ctx, qBlogInsert,
		p.ID, p.UserID, p.ScheduleID, p.WebsiteURL, p.Title, p.Content, p.Research, p.Model,
	).Scan(&p.CreatedAt)
	return mapErr("insert blog post", err)
}

func (r *BlogRepo) GetByID(ctx context.Context, id uuid.UUID) (*blog.Post, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var p blog.Post
	if err := scanPost(r.db.Pool.QueryRow(ctx, qBlogByID, id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *BlogRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*blog.Post, error) {
	if limit <= 0 {
		limit = 20
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Pool.Query(ctx, qBlogByUser, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query blog posts: %w", err)
	}
	defer rows.Close()

	var out []*blog.Post
	for rows.Next() {
		var p blog.Post
		if err := scanPost(rows, &p); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
