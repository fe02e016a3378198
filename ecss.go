package cand

import "time"

const secondsInDay = 24 * 60 * 60

// Scet is the ECSS spacecraft elapsed time: seconds and microseconds since
// the unix epoch, packed into a UINT64 entry as coarse:32 fine:24.
type Scet struct {
	Coarse uint32
	Fine   uint32
}

// ScetFromTime converts t to SCET.
func ScetFromTime(t time.Time) Scet {
	return Scet{
		Coarse: uint32(t.Unix()),
		Fine:   uint32(t.Nanosecond() / 1000),
	}
}

// ScetFromUint64 unpacks a SCET entry value.
func ScetFromUint64(v uint64) Scet {
	return Scet{
		Coarse: uint32(v),
		Fine:   uint32(v>>32) & 0xFFFFFF,
	}
}

// Uint64 packs s into an entry value.
func (s Scet) Uint64() uint64 {
	return uint64(s.Coarse) | uint64(s.Fine&0xFFFFFF)<<32
}

// Time converts s to a time.Time.
func (s Scet) Time() time.Time {
	return time.Unix(int64(s.Coarse), int64(s.Fine)*1000)
}

// Utc is the ECSS spacecraft UTC: days since the unix epoch, milliseconds of
// the day and microseconds of the millisecond, packed as day:16 ms:32 us:16.
type Utc struct {
	Day          uint16
	Milliseconds uint32
	Microseconds uint16
}

// UtcFromTime converts t to UTC day time.
func UtcFromTime(t time.Time) Utc {
	t = t.UTC()
	sec := t.Unix()
	usOfDay := (sec%secondsInDay)*1_000_000 + int64(t.Nanosecond()/1000)
	return Utc{
		Day:          uint16(sec / secondsInDay),
		Milliseconds: uint32(usOfDay / 1000),
		Microseconds: uint16(usOfDay % 1000),
	}
}

// UtcFromUint64 unpacks a UTC entry value.
func UtcFromUint64(v uint64) Utc {
	return Utc{
		Day:          uint16(v),
		Milliseconds: uint32(v >> 16),
		Microseconds: uint16(v >> 48),
	}
}

// Uint64 packs u into an entry value.
func (u Utc) Uint64() uint64 {
	return uint64(u.Day) | uint64(u.Milliseconds)<<16 | uint64(u.Microseconds)<<48
}

// Time converts u to a time.Time in UTC.
func (u Utc) Time() time.Time {
	us := int64(u.Day)*secondsInDay*1_000_000 + int64(u.Milliseconds)*1000 + int64(u.Microseconds)
	return time.UnixMicro(us).UTC()
}
