package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTimeOfDay(t *testing.T) {
	v, err := ParseTimeOfDay("16:30")
	assert.Nil(t, err)
	assert.Equal(t, TimeOfDay(990), v)
	assert.Equal(t, "16:30", v.String())

	v, err = ParseTimeOfDay("24:00")
	assert.Nil(t, err)
	assert.Equal(t, MinutesPerDay, v)

	v, err = ParseTimeOfDay("08:15:00")
	assert.Nil(t, err)
	assert.Equal(t, TimeOfDay(495), v)

	for _, bad := range []string{"", "8", "24:01", "25:00", "10:60", "ab:cd"} {
		_, err := ParseTimeOfDay(bad)
		assert.NotNil(t, err, bad)
	}
}

func TestTimeOfDayJSON(t *testing.T) {
	var body struct {
		Start TimeOfDay `json:"start"`
	}
	err := json.Unmarshal([]byte(`{"start":"09:05"}`), &body)
	assert.Nil(t, err)
	assert.Equal(t, TimeOfDay(545), body.Start)

	out, err := json.Marshal(body)
	assert.Nil(t, err)
	assert.JSONEq(t, `{"start":"09:05"}`, string(out))
}

func TestTimeOfDayScan(t *testing.T) {
	var v TimeOfDay
	assert.Nil(t, v.Scan(int64(600)))
	assert.Equal(t, TimeOfDay(600), v)
	assert.Nil(t, v.Scan([]byte("720")))
	assert.Equal(t, TimeOfDay(720), v)
	assert.NotNil(t, v.Scan(1.5))
}

func TestDaySet(t *testing.T) {
	set := NewDaySet(4, 2, 4)
	assert.Equal(t, DaySet{2, 4}, set)
	assert.Equal(t, "2,4", set.String())
	assert.True(t, set.Contains(2))
	assert.False(t, set.Contains(3))

	assert.True(t, set.Intersects(NewDaySet(4, 6)))
	assert.False(t, set.Intersects(NewDaySet(3, 5)))
	assert.True(t, set.Intersects(DaySet{}))
	assert.True(t, DaySet{}.Intersects(set))
}

func TestDaySetScan(t *testing.T) {
	var set DaySet
	assert.Nil(t, set.Scan("8, 2"))
	assert.Equal(t, DaySet{2, 8}, set)

	assert.Nil(t, set.Scan([]byte("")))
	assert.True(t, set.IsEmpty())

	assert.Nil(t, set.Scan(nil))
	assert.True(t, set.IsEmpty())

	assert.NotNil(t, set.Scan("2,x"))

	v, err := NewDaySet(3, 2).Value()
	assert.Nil(t, err)
	assert.Equal(t, "2,3", v)
}
