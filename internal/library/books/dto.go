package books

import "time"

const dateLayout = "2006-01-02"

// ===== Requests =====

type CreateBookRequest struct {
	Title       string  `json:"title" binding:"required"`
	Author      string  `json:"author" binding:"required"`
	Genre       string  `json:"genre"`
	Description *string `json:"description,omitempty"`
	// "2006-01-02" 形式
	PublicationDate *string `json:"publication_date,omitempty"`
	TotalCopies     int     `json:"total_copies"`
	// 未指定なら total_copies と同じ
	CopiesAvailable *int `json:"copies_available,omitempty"`
	// 未指定なら設定ファイルの既定値
	OverdueDays *int    `json:"overdue_days,omitempty"`
	ImageURL    *string `json:"image_url,omitempty"`
}

// copies_available は貸出・返却でしか動かさない。total_copies の増減分だけ追従する。
type UpdateBookRequest struct {
	Title           *string `json:"title,omitempty"`
	Author          *string `json:"author,omitempty"`
	Genre           *string `json:"genre,omitempty"`
	Description     *string `json:"description,omitempty"`
	PublicationDate *string `json:"publication_date,omitempty"`
	TotalCopies     *int    `json:"total_copies,omitempty"`
	OverdueDays     *int    `json:"overdue_days,omitempty"`
	ImageURL        *string `json:"image_url,omitempty"`
}

// ===== Responses =====

type BookResponse struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	Genre           string    `json:"genre"`
	Description     *string   `json:"description,omitempty"`
	PublicationDate *string   `json:"publication_date,omitempty"`
	TotalCopies     int       `json:"total_copies"`
	CopiesAvailable int       `json:"copies_available"`
	OverdueDays     int       `json:"overdue_days"`
	ImageURL        *string   `json:"image_url,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func buildBookResponse(b *Book) BookResponse {
	resp := BookResponse{
		ID:              b.ID,
		Title:           b.Title,
		Author:          b.Author,
		Genre:           b.Genre,
		TotalCopies:     b.TotalCopies,
		CopiesAvailable: b.CopiesAvailable,
		OverdueDays:     b.OverdueDays,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
	if b.Description.Valid {
		val := b.Description.String
		resp.Description = &val
	}
	if b.PublicationDate.Valid {
		val := b.PublicationDate.Time.Format(dateLayout)
		resp.PublicationDate = &val
	}
	if b.ImageURL.Valid {
		val := b.ImageURL.String
		resp.ImageURL = &val
	}
	return resp
}
