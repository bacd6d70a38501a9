// Package entity は関心銘柄グループのドメインモデルを定義します。
package entity

import (
	"time"

	rankingentity "stock_board/internal/feature/ranking/domain/entity"
)

const (
	// DefaultGroupName はグループを1つも持たないユーザーに自動作成されるグループ名です。
	DefaultGroupName = "기본 그룹"
	// MaxGroupNameLength はグループ名の最大文字数です。
	MaxGroupNameLength = 50
)

// Group はユーザーごとの関心銘柄グループです。
type Group struct {
	ID        uint
	UserID    uint
	Name      string
	CreatedAt time.Time
}

// Stock はグループに登録された銘柄です。(UserID, GroupID, Market, Code) で一意です。
type Stock struct {
	ID        uint
	UserID    uint
	GroupID   uint
	Market    rankingentity.Market
	Code      string
	Exchange  string // 海外銘柄のみ
	Name      string
	CreatedAt time.Time
}

// Key は銘柄の識別子を返します。
func (s Stock) Key() rankingentity.Key {
	return rankingentity.Key{Market: s.Market, Code: s.Code}
}

// Quote は価格情報が未取得（すべて0）の Quote を返します。値はティックで埋まります。
func (s Stock) Quote() rankingentity.Quote {
	return rankingentity.Quote{
		Market:   s.Market,
		Code:     s.Code,
		Exchange: s.Exchange,
		Symbol:   s.Code,
		Name:     s.Name,
	}
}
