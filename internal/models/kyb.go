package models

import "time"

type DocumentType string

const (
	DocArticlesOfIncorporation DocumentType = "articles_of_incorporation"
	DocEINLetter               DocumentType = "ein_letter"
	DocGovernmentID            DocumentType = "government_id"
	DocOther                   DocumentType = "other"
)

// RequiredDocuments must all be on file before KYB can be submitted.
var RequiredDocuments = []DocumentType{DocArticlesOfIncorporation, DocEINLetter, DocGovernmentID}

func (d DocumentType) Valid() bool {
	switch d {
	case DocArticlesOfIncorporation, DocEINLetter, DocGovernmentID, DocOther:
		return true
	}
	return false
}

// KYBDocument is a verification file held in private storage.
type KYBDocument struct {
	ID          uint         `gorm:"primarykey" json:"id"`
	MerchantID  uint         `gorm:"index;not null" json:"merchant_id"`
	DocType     DocumentType `gorm:"type:varchar(40);not null" json:"doc_type"`
	StoragePath string       `gorm:"not null" json:"-"`
	FileName    string       `gorm:"size:255" json:"file_name"`
	ContentType string       `gorm:"size:100" json:"content_type"`
	SizeBytes   int64        `json:"size_bytes"`
	SignedURL   string       `gorm:"-" json:"signed_url,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}
