package model

import (
	"errors"
	"testing"
)

func TestSearchCriteria_Validate(t *testing.T) {
	t.Parallel()

	valid := SearchCriteria{DesiredCount: 1, PageSize: 20, MaxPages: 1}

	tests := []struct {
		name    string
		mutate  func(*SearchCriteria)
		wantErr error
	}{
		{name: "valid", mutate: func(*SearchCriteria) {}},
		{name: "page size larger than desired is fine", mutate: func(c *SearchCriteria) { c.PageSize = 500 }},
		{name: "zero desired", mutate: func(c *SearchCriteria) { c.DesiredCount = 0 }, wantErr: ErrInvalidDesiredCount},
		{name: "zero pages", mutate: func(c *SearchCriteria) { c.MaxPages = 0 }, wantErr: ErrInvalidMaxPages},
		{name: "zero page size", mutate: func(c *SearchCriteria) { c.PageSize = 0 }, wantErr: ErrInvalidPageSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := valid
			tt.mutate(&c)
			if err := c.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestChannel_Valid(t *testing.T) {
	t.Parallel()

	if !ChannelAPI.Valid() || !ChannelHTML.Valid() {
		t.Error("known channels must be valid")
	}
	if Channel("rss").Valid() {
		t.Error("unknown channel must be invalid")
	}
	if ChannelHTML.String() != "html" {
		t.Errorf("String() = %q", ChannelHTML.String())
	}
}
