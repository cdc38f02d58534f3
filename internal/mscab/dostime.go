package mscab

import "time"

// dosEpoch is the earliest representable DOS date.
var dosEpoch = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.Local)

// DOSDateTime encodes t as packed DOS date and time fields. Times
// before 1980 clamp to the epoch; resolution is two seconds, in local
// time, matching how cabinet file records store timestamps.
func DOSDateTime(t time.Time) (date, tim uint16) {
	t = t.Local()
	if t.Before(dosEpoch) {
		t = dosEpoch
	}
	date = uint16(t.Year()-1980)<<9 | uint16(t.Month())<<5 | uint16(t.Day())
	tim = uint16(t.Hour())<<11 | uint16(t.Minute())<<5 | uint16(t.Second()/2)
	return date, tim
}

// TimeFromDOS decodes packed DOS date and time fields.
func TimeFromDOS(date, tim uint16) time.Time {
	year := int(date>>9) + 1980
	month := time.Month(date >> 5 & 0x0F)
	day := int(date & 0x1F)
	hour := int(tim >> 11)
	minute := int(tim >> 5 & 0x3F)
	second := int(tim&0x1F) * 2
	return time.Date(year, month, day, hour, minute, second, 0, time.Local)
}
