package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/safetap/api/internal/history"
	"github.com/safetap/api/internal/protocol"
	"github.com/safetap/api/internal/user"
)

type fixture struct {
	users *user.Service
	audit *history.MemoryAudit
	log   *history.MemoryLog
	svc   *Service
}

func newFixture() *fixture {
	f := &fixture{
		users: user.NewService(user.NewMemoryStore()),
		audit: history.NewMemoryAudit(),
		log:   history.NewMemoryLog(),
	}
	f.svc = NewService(f.users, f.audit, f.log)
	return f
}

func seed(t *testing.T, f *fixture) {
	t.Helper()
	ctx := context.Background()
	if _, err := f.users.Register(ctx, user.RegisterInput{Username: "ana", Password: "segredo1", Name: "Ana"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := f.users.Register(ctx, user.RegisterInput{Username: "bento", Password: "segredo2", Name: "Bento", Authority: "Rescue Team"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := f.users.SetStatus(ctx, "bento", user.StatusSuspended); err != nil {
		t.Fatalf("status: %v", err)
	}

	now := time.Now().UTC()
	events := []history.PanicEvent{
		{Username: "ana", EmergencyType: protocol.Medical, Location: history.Location{Lat: 14.5995, Lng: 120.9842, Accuracy: 50}, Timestamp: now.Add(-48 * time.Hour)},
		{Username: "ana", EmergencyType: protocol.Police, Location: history.Location{Lat: 10.3, Lng: 123.9}, Timestamp: now.Add(-time.Minute)},
		{Username: "bento", EmergencyType: protocol.Medical, Timestamp: now},
	}
	for _, e := range events {
		if _, err := f.audit.Record(ctx, e); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
}

func TestStats(t *testing.T) {
	f := newFixture()
	seed(t, f)

	st, err := f.svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.TotalUsers != 2 || st.ActiveUsers != 1 || st.TotalEmergencies != 3 {
		t.Fatalf("totais inesperados: %+v", st)
	}
	if st.EmergencyTypes["medical"] != 2 || st.EmergencyTypes["police"] != 1 {
		t.Fatalf("contagem por tipo inesperada: %+v", st.EmergencyTypes)
	}
	if st.TodayEmergencies < 1 || st.TodayEmergencies > 2 {
		t.Fatalf("emergências de hoje fora do esperado: %d", st.TodayEmergencies)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := newFixture()
	seed(t, src)

	snap, err := src.svc.Export(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded Snapshot
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	// ordem de chegada não importa
	for i, j := 0, len(decoded.PanicEvents)-1; i < j; i, j = i+1, j-1 {
		decoded.PanicEvents[i], decoded.PanicEvents[j] = decoded.PanicEvents[j], decoded.PanicEvents[i]
	}

	dst := newFixture()
	if err := dst.svc.Import(ctx, decoded); err != nil {
		t.Fatalf("import: %v", err)
	}
	again, err := dst.svc.Export(ctx)
	if err != nil {
		t.Fatalf("export 2: %v", err)
	}

	if len(again.Users) != len(snap.Users) {
		t.Fatalf("usuários: %d != %d", len(again.Users), len(snap.Users))
	}
	byName := map[string]ExportedUser{}
	for _, u := range again.Users {
		byName[u.Username] = u
	}
	for _, want := range snap.Users {
		got, ok := byName[want.Username]
		if !ok {
			t.Fatalf("usuário %s ausente", want.Username)
		}
		if got.ID != want.ID || got.Role != want.Role || got.Status != want.Status ||
			got.PasswordHash != want.PasswordHash || !got.CreatedAt.Equal(want.CreatedAt) {
			t.Fatalf("usuário divergente: %+v != %+v", got, want)
		}
	}

	if len(again.PanicEvents) != len(snap.PanicEvents) {
		t.Fatalf("emergências: %d != %d", len(again.PanicEvents), len(snap.PanicEvents))
	}
	byID := map[string]history.PanicEvent{}
	for _, e := range again.PanicEvents {
		byID[e.ID.String()] = e
	}
	for _, want := range snap.PanicEvents {
		got, ok := byID[want.ID.String()]
		if !ok {
			t.Fatalf("emergência %s ausente", want.ID)
		}
		if got.Username != want.Username || got.EmergencyType != want.EmergencyType ||
			got.Location != want.Location || !got.Timestamp.Equal(want.Timestamp) {
			t.Fatalf("emergência divergente: %+v != %+v", got, want)
		}
	}

	if _, err := dst.users.Authenticate(ctx, "ana", "segredo1", ""); err != nil {
		t.Fatalf("login após importação: %v", err)
	}
}

func TestImportRejectsInvalidSnapshot(t *testing.T) {
	f := newFixture()
	err := f.svc.Import(context.Background(), Snapshot{Users: []ExportedUser{{User: user.User{Username: "x1y", Role: "root", Status: user.StatusActive}, PasswordHash: "h"}}})
	if !errors.Is(err, ErrInvalidSnapshot) {
		t.Fatalf("esperava ErrInvalidSnapshot, veio %v", err)
	}
}

type failingAudit struct {
	*history.MemoryAudit
}

func (failingAudit) Replace(ctx context.Context, events []history.PanicEvent) error {
	return errors.New("disco cheio")
}

func TestImportRestoresUsersWhenAuditFails(t *testing.T) {
	f := newFixture()
	seed(t, f)
	ctx := context.Background()

	snap, err := f.svc.Export(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	snap.Users = snap.Users[:1]

	svc := NewService(f.users, failingAudit{f.audit}, f.log)
	if err := svc.Import(ctx, snap); err == nil {
		t.Fatalf("importação deveria falhar")
	}

	users, _ := f.users.List(ctx)
	if len(users) != 2 {
		t.Fatalf("usuários deveriam ser restaurados, veio %d", len(users))
	}
	if _, err := f.users.Get(ctx, "bento"); err != nil {
		t.Fatalf("bento deveria continuar cadastrado: %v", err)
	}
}

type recordingImporter struct {
	users  []user.User
	events []history.PanicEvent
}

func (r *recordingImporter) ReplaceAll(ctx context.Context, users []user.User, events []history.PanicEvent) error {
	r.users, r.events = users, events
	return nil
}

func TestImportUsesConfiguredImporter(t *testing.T) {
	f := newFixture()
	imp := &recordingImporter{}
	f.svc.WithImporter(imp)

	snap := Snapshot{
		Users:       []ExportedUser{{User: user.User{Username: "  Carla ", Role: user.RoleUser, Status: user.StatusActive}, PasswordHash: "h"}},
		PanicEvents: []history.PanicEvent{{Username: "carla", EmergencyType: protocol.BFP, Timestamp: time.Now()}},
	}
	if err := f.svc.Import(context.Background(), snap); err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(imp.users) != 1 || imp.users[0].Username != "carla" || imp.users[0].ID == uuid.Nil {
		t.Fatalf("usuários não preparados antes da importação: %+v", imp.users)
	}
	if len(imp.events) != 1 {
		t.Fatalf("emergências não repassadas: %+v", imp.events)
	}
	if users, _ := f.users.List(context.Background()); len(users) != 0 {
		t.Fatalf("importador configurado deveria substituir o padrão")
	}
}

func TestCSVReports(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	seed(t, f)

	var buf bytes.Buffer
	if err := f.svc.WriteUsersCSV(ctx, &buf); err != nil {
		t.Fatalf("users csv: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("ler csv: %v", err)
	}
	if len(rows) != 3 || rows[0][0] != "User ID" || len(rows[0]) != 10 {
		t.Fatalf("csv de usuários inesperado: %v", rows)
	}

	buf.Reset()
	if err := f.svc.WriteEmergenciesCSV(ctx, &buf, history.AuditFilter{EmergencyType: protocol.Medical}); err != nil {
		t.Fatalf("emergencies csv: %v", err)
	}
	rows, _ = csv.NewReader(&buf).ReadAll()
	if len(rows) != 3 || rows[1][1] != "Medical" {
		t.Fatalf("csv de emergências inesperado: %v", rows)
	}
}

func TestTrimAndReset(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	seed(t, f)
	for i := 0; i < 5; i++ {
		_, _ = f.log.Append(ctx, history.Event{Owner: "ana", Type: history.TypeSystem, Title: "evento"})
		_, _ = f.log.Append(ctx, history.Event{Owner: "bento", Type: history.TypeSystem, Title: "evento"})
	}

	removed, err := f.svc.TrimHistory(ctx, 2)
	if err != nil || removed != 6 {
		t.Fatalf("trim: removed=%d err=%v", removed, err)
	}

	if err := f.svc.ResetDemoData(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	events, _ := f.audit.List(ctx, history.AuditFilter{})
	if len(events) != 0 {
		t.Fatalf("reset deveria limpar emergências")
	}
	left, _ := history.Collect(f.log.Query(ctx, history.Filter{Owner: "ana"}))
	if len(left) != 0 {
		t.Fatalf("reset deveria limpar histórico")
	}
	users, _ := f.users.List(ctx)
	if len(users) != 2 {
		t.Fatalf("reset não deve remover contas")
	}
}
