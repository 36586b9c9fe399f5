// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザー（権利者）を表す。
type User struct {
	ID        string
	Email     string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DMCAProfile はユーザーのDMCA連絡先デフォルトを表す。
// リクエストで連絡先が指定されない場合、このプロフィールから
// DMCAContactが構築される。
type DMCAProfile struct {
	ID            string
	UserID        string
	Name          string
	Company       string
	Email         string
	Phone         string
	Address       string
	IsOwner       bool
	OwnerRelation string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Contact はDMCAProfileから通知用の連絡先を構築する。
func (p *DMCAProfile) Contact() DMCAContact {
	return DMCAContact{
		Name:          p.Name,
		Company:       p.Company,
		Email:         p.Email,
		Phone:         p.Phone,
		Address:       p.Address,
		IsOwner:       p.IsOwner,
		OwnerRelation: p.OwnerRelation,
	}
}

// APIToken はAPIアクセス用のトークンを表す。
// トークン本体は保存せず、SHA-256ハッシュのみを永続化する。
type APIToken struct {
	ID         string
	UserID     string
	TokenHash  string
	Label      string
	LastUsedAt *time.Time
	CreatedAt  time.Time
}
