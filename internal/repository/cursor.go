package repository

import (
	"encoding/base64"
	"time"
)

const (
	timeFormat = "2006-01-02T15:04:05.999Z07:00" // reduce precision loss in cursor round trips

	pageMin = 5
	pageMax = 30
)

// DecodeCursor 把游标还原成时间
func DecodeCursor(encodedTime string) (time.Time, error) {
	byt, err := base64.StdEncoding.DecodeString(encodedTime)
	if err != nil {
		return time.Time{}, err
	}

	return time.Parse(timeFormat, string(byt))
}

// EncodeCursor 把时间编码成游标
func EncodeCursor(t time.Time) string {
	return base64.StdEncoding.EncodeToString([]byte(t.Format(timeFormat)))
}

// PageVerify clamps the page size into a sane range
func PageVerify(num *int64) {
	if *num < pageMin {
		*num = pageMin
	}
	if *num > pageMax {
		*num = pageMax
	}
}
