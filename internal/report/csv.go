package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/safetap/api/internal/history"
)

const (
	dayLayout       = "2006-01-02"
	timestampLayout = "2006-01-02 15:04:05"
)

var (
	userHeader      = []string{"User ID", "Username", "Name", "Email", "Phone", "Authority", "Role", "Status", "Created At", "Last Login"}
	emergencyHeader = []string{"Username", "Emergency Type", "Timestamp", "Date", "Latitude", "Longitude"}
)

// WriteUsersCSV escreve o relatório de usuários.
func (s *Service) WriteUsersCSV(ctx context.Context, w io.Writer) error {
	users, err := s.users.List(ctx)
	if err != nil {
		return fmt.Errorf("listar usuários: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(userHeader); err != nil {
		return err
	}
	for _, u := range users {
		lastLogin := ""
		if u.LastLogin != nil {
			lastLogin = u.LastLogin.Format(timestampLayout)
		}
		row := []string{
			u.ID.String(),
			u.Username,
			u.Name,
			u.Email,
			u.Phone,
			u.Authority,
			string(u.Role),
			string(u.Status),
			u.CreatedAt.Format(dayLayout),
			lastLogin,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteEmergenciesCSV escreve o relatório de emergências, mais recentes primeiro.
func (s *Service) WriteEmergenciesCSV(ctx context.Context, w io.Writer, f history.AuditFilter) error {
	events, err := s.audit.List(ctx, f)
	if err != nil {
		return fmt.Errorf("listar emergências: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(emergencyHeader); err != nil {
		return err
	}
	for _, e := range events {
		row := []string{
			e.Username,
			e.EmergencyType.Label(),
			e.Timestamp.Format(timestampLayout),
			e.Date,
			strconv.FormatFloat(e.Location.Lat, 'f', 6, 64),
			strconv.FormatFloat(e.Location.Lng, 'f', 6, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
