// Package paging は一覧系エンドポイント共通の limit/offset と応答エンベロープ。
// 応答は必ず {items, total, next_offset} の形にする（next_offset=0 は終端）。
package paging

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

type Page struct {
	Limit  int
	Offset int
	Order  string // "asc" | "desc"
}

// FromQuery: limit/offset を優先し、無ければ旧フロントの page(1始まり)/page_size を解釈する
func FromQuery(c *gin.Context, defaultOrder string) Page {
	p := Page{
		Limit:  atoiDef(c.Query("limit"), 0),
		Offset: atoiDef(c.Query("offset"), 0),
		Order:  strings.ToLower(c.DefaultQuery("order", defaultOrder)),
	}
	if p.Limit == 0 {
		p.Limit = atoiDef(c.Query("page_size"), 0)
	}
	if page := atoiDef(c.Query("page"), 0); page > 0 && c.Query("offset") == "" {
		size := p.Limit
		if size <= 0 {
			size = DefaultLimit
		}
		p.Offset = (page - 1) * size
	}
	return p.Normalize()
}

func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Order != "asc" {
		p.Order = "desc"
	}
	return p
}

// SQLOrder は ORDER BY にそのまま埋め込む値を返す
func (p Page) SQLOrder() string {
	if p.Order == "asc" {
		return "ASC"
	}
	return "DESC"
}

type List[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	NextOffset int   `json:"next_offset"`
}

func NewList[T any](items []T, total int64, p Page) List[T] {
	if items == nil {
		items = []T{}
	}
	next := p.Offset + p.Limit
	if next >= int(total) {
		next = 0
	} // 0=終端
	return List[T]{Items: items, Total: total, NextOffset: next}
}

func atoiDef(s string, d int) int {
	if s == "" {
		return d
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return d
	}
	return v
}
