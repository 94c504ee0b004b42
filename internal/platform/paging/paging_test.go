package paging

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func pageFor(target, order string) Page {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", target, nil)
	return FromQuery(c, order)
}

func TestFromQuery(t *testing.T) {
	cases := []struct {
		target string
		want   Page
	}{
		{"/x", Page{Limit: 50, Offset: 0, Order: "desc"}},
		{"/x?limit=10&offset=20&order=ASC", Page{Limit: 10, Offset: 20, Order: "asc"}},
		{"/x?limit=9999", Page{Limit: MaxLimit, Offset: 0, Order: "desc"}},
		{"/x?limit=-1&offset=-5", Page{Limit: 50, Offset: 0, Order: "desc"}},
		{"/x?page=3&page_size=10", Page{Limit: 10, Offset: 20, Order: "desc"}},
		{"/x?page=2&limit=25", Page{Limit: 25, Offset: 25, Order: "desc"}},
		{"/x?page=2", Page{Limit: 50, Offset: 50, Order: "desc"}},
		{"/x?order=sideways", Page{Limit: 50, Offset: 0, Order: "desc"}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, pageFor(tc.target, "desc"), tc.target)
	}
	assert.Equal(t, "asc", pageFor("/x", "asc").Order)
}

func TestNewList(t *testing.T) {
	p := Page{Limit: 2, Offset: 0}
	l := NewList([]int{1, 2}, 5, p)
	assert.Equal(t, 2, l.NextOffset)

	l = NewList([]int{5}, 5, Page{Limit: 2, Offset: 4})
	assert.Equal(t, 0, l.NextOffset)

	empty := NewList[int](nil, 0, p)
	assert.NotNil(t, empty.Items)
	assert.Empty(t, empty.Items)
}
