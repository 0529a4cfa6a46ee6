package timeslot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToMinutes(t *testing.T) {
	testCases := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"09:00", 540, false},
		{"09:30", 570, false},
		{"18:45", 1125, false},
		{"23:59", 1439, false},
		{"24:00", 1440, false},
		{"24:01", 0, true},
		{"25:00", 0, true},
		{"09:60", 0, true},
		{"-1:00", 0, true},
		{"0900", 0, true},
		{"", 0, true},
		{"ab:cd", 0, true},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ToMinutes(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestOverlaps(t *testing.T) {
	testCases := []struct {
		name string
		a, b Slot
		want bool
	}{
		{
			name: "identical slots",
			a:    Slot{Start: "09:00", End: "10:00"},
			b:    Slot{Start: "09:00", End: "10:00"},
			want: true,
		},
		{
			name: "strict overlap",
			a:    Slot{Start: "09:00", End: "10:00"},
			b:    Slot{Start: "09:30", End: "10:30"},
			want: true,
		},
		{
			name: "touching endpoints do not conflict",
			a:    Slot{Start: "09:00", End: "10:00"},
			b:    Slot{Start: "10:00", End: "11:00"},
			want: false,
		},
		{
			name: "disjoint",
			a:    Slot{Start: "08:00", End: "09:00"},
			b:    Slot{Start: "18:00", End: "19:00"},
			want: false,
		},
		{
			name: "containment",
			a:    Slot{Start: "09:00", End: "12:00"},
			b:    Slot{Start: "10:00", End: "11:00"},
			want: true,
		},
		{
			name: "one-minute overlap",
			a:    Slot{Start: "09:00", End: "10:01"},
			b:    Slot{Start: "10:00", End: "11:00"},
			want: true,
		},
		{
			name: "unparseable never overlaps",
			a:    Slot{Start: "bogus", End: "10:00"},
			b:    Slot{Start: "09:00", End: "11:00"},
			want: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Overlaps(tc.a, tc.b))
			// Overlap is symmetric.
			assert.Equal(t, Overlaps(tc.a, tc.b), Overlaps(tc.b, tc.a))
		})
	}
}

func TestAnyOverlap(t *testing.T) {
	requested := []Slot{
		{Start: "09:00", End: "10:00"},
		{Start: "18:00", End: "19:00"},
	}
	existing := []Slot{
		{Start: "10:00", End: "11:00"},
		{Start: "18:30", End: "19:30"},
	}

	assert.True(t, AnyOverlap(requested, existing))
	assert.False(t, AnyOverlap(requested[:1], existing[:1]))
	assert.False(t, AnyOverlap(nil, existing))
	assert.False(t, AnyOverlap(requested, nil))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate([]Slot{
		{Start: "09:00", End: "10:00", Price: 100000},
		{Start: "10:00", End: "11:00", Price: 120000},
	}))
	assert.NoError(t, Validate(nil))

	assert.Error(t, Validate([]Slot{{Start: "10:00", End: "09:00"}}))
	assert.Error(t, Validate([]Slot{{Start: "10:00", End: "10:00"}}))
	assert.Error(t, Validate([]Slot{{Start: "10 AM", End: "11:00"}}))
	assert.Error(t, Validate([]Slot{{Start: "09:00", End: "10:00", Price: -1}}))
}

func TestOverlapWithin(t *testing.T) {
	assert.False(t, OverlapWithin([]Slot{
		{Start: "09:00", End: "10:00"},
		{Start: "10:00", End: "11:00"},
	}))
	assert.True(t, OverlapWithin([]Slot{
		{Start: "09:00", End: "10:30"},
		{Start: "10:00", End: "11:00"},
	}))
	assert.False(t, OverlapWithin(nil))
}

func TestTotalPrice(t *testing.T) {
	slots := []Slot{
		{Start: "09:00", End: "10:00", Price: 150000},
		{Start: "10:00", End: "11:00", Price: 150000},
	}
	assert.Equal(t, 300000.0, TotalPrice(slots, 1))
	assert.Equal(t, 600000.0, TotalPrice(slots, 2))
	assert.Equal(t, 0.0, TotalPrice(nil, 3))
}

func TestSignature(t *testing.T) {
	slots := []Slot{
		{Start: "09:00", End: "10:00"},
		{Start: "18:00", End: "19:30"},
	}
	assert.Equal(t, []string{"09:00-10:00", "18:00-19:30"}, Signature(slots))
}
