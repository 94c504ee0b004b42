package genres

type Genre struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	IsDisabled bool   `json:"is_disabled"`
}

type CreateGenreRequest struct {
	Name string `json:"name" binding:"required"`
}

type UpdateGenreRequest struct {
	Name       string `json:"name" binding:"required"`
	IsDisabled bool   `json:"is_disabled"`
}
