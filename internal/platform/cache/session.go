package cache

import (
	"time"
	_ "time/tzdata" // コンテナイメージにタイムゾーンDBがなくても動かすため
)

const (
	// OpenSessionTTL は取引時間中のスナップショットの有効期間です。
	OpenSessionTTL = 5 * time.Second
	// ClosedSessionTTL は取引時間外の最大有効期間です。
	ClosedSessionTTL = time.Minute
)

// Session は1つの市場の通常取引時間です。
type Session struct {
	Location *time.Location
	Open     time.Duration // 0時からの経過時間
	Close    time.Duration
}

var (
	seoul, _   = time.LoadLocation("Asia/Seoul")
	newYork, _ = time.LoadLocation("America/New_York")

	// DomesticSession は国内市場（09:00〜15:30 KST）です。
	DomesticSession = Session{Location: seoul, Open: 9 * time.Hour, Close: 15*time.Hour + 30*time.Minute}
	// OverseasSession は米国市場（09:30〜16:00 ET）です。
	OverseasSession = Session{Location: newYork, Open: 9*time.Hour + 30*time.Minute, Close: 16 * time.Hour}
)

// IsOpen は now が平日の取引時間内かどうかを返します。祝日は考慮しません。
func (s Session) IsOpen(now time.Time) bool {
	local := now.In(s.Location)
	if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.Location)
	elapsed := local.Sub(midnight)
	return elapsed >= s.Open && elapsed < s.Close
}

// TimeUntilOpen は次の取引開始までの期間を返します。取引時間中は0です。
func (s Session) TimeUntilOpen(now time.Time) time.Duration {
	if s.IsOpen(now) {
		return 0
	}
	local := now.In(s.Location)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.Location)
	for i := 0; i < 8; i++ {
		d := day.AddDate(0, 0, i)
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		open := d.Add(s.Open)
		if open.After(local) {
			return open.Sub(local)
		}
	}
	return 0
}

// SessionTTL はいずれかの市場が取引中なら OpenSessionTTL を返し、
// それ以外は次の取引開始までの期間（最大 ClosedSessionTTL）を返します。
func SessionTTL(now time.Time) time.Duration {
	ttl := ClosedSessionTTL
	for _, s := range []Session{DomesticSession, OverseasSession} {
		if s.IsOpen(now) {
			return OpenSessionTTL
		}
		if d := s.TimeUntilOpen(now); d > 0 && d < ttl {
			ttl = d
		}
	}
	return ttl
}
