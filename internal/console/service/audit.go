package service

import (
	"context"

	"github.com/xela07ax/dmlguard/internal/audit"
)

// AuditReader описывает требования сервиса к хранилищу decision trail
type AuditReader interface {
	ReadRecent(ctx context.Context, limit int) ([]audit.GuardEvent, error)
}

type AuditService struct {
	reader AuditReader
}

func NewAuditService(reader AuditReader) *AuditService {
	return &AuditService{reader: reader}
}

func (s *AuditService) Recent(ctx context.Context, limit int) ([]audit.GuardEvent, error) {
	return s.reader.ReadRecent(ctx, limit)
}
