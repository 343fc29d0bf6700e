package portal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rma-advocacia/client-portal/internal/catalog"
	"github.com/rma-advocacia/client-portal/internal/engagement"
	"github.com/rma-advocacia/client-portal/internal/models"
	"github.com/rma-advocacia/client-portal/internal/storage"
)

func testCatalog(t *testing.T) *catalog.Loader {
	t.Helper()
	cat := catalog.NewLoader()
	require.NoError(t, cat.Add(&models.ServiceOffering{
		ID:    "acordo_quotistas",
		Name:  "Acordo de Quotistas",
		Scope: "Estruturação completa do acordo entre sócios.",
		Stages: []models.StageTemplate{
			{Name: "Primeira reunião", Weight: 5},
			{Name: "Contrato enviado", Weight: 5},
			{Name: "Contrato assinado", Weight: 10},
			{Name: "Pagamento confirmado", Weight: 10},
			{Name: "Documentação completa", Weight: 15},
			{Name: "Minuta preliminar", Weight: 25},
			{Name: "Reunião de validação", Weight: 10},
			{Name: "Entrega final", Weight: 20},
		},
		RequiredDocuments: []string{"Contrato Social", "Alterações Contratuais", "Documento Sócio 1", "Documento Sócio 2"},
		Gates:             []string{"documents", "payment"},
	}))
	return cat
}

func testClient(code string) *models.Client {
	return &models.Client{
		AccessCode:     code,
		Company:        "XPTO LTDA",
		ServiceID:      "acordo_quotistas",
		AccountManager: "Rodrigo Alexandre",
	}
}

func newTestManager(t *testing.T, policy engagement.GatePolicy) (*EngagementManager, *storage.MemoryRepository) {
	t.Helper()
	repo := storage.NewMemoryRepository()
	return NewManager(testCatalog(t), repo, policy), repo
}

func TestManager_OpenStartsSession(t *testing.T) {
	m, repo := newTestManager(t, engagement.PolicyLatch)
	ctx := context.Background()
	client := testClient("XPTO123")

	view, err := m.Open(ctx, client)
	require.NoError(t, err)

	assert.Equal(t, "acordo_quotistas", view.Offering.ID)
	assert.Equal(t, "Acordo de Quotistas", view.Offering.Name)
	assert.Len(t, view.Stages, 8)
	assert.Len(t, view.Documents, 4)
	assert.Len(t, view.Installments, 3)
	assert.Equal(t, 0, view.Progress.CompletionPercentage)
	assert.Equal(t, "Primeira reunião", view.Progress.CurrentStage)

	stored, err := repo.Get(ctx, "XPTO123")
	require.NoError(t, err)
	require.NotNil(t, stored)

	// reopening resumes the same session
	again, err := m.Open(ctx, client)
	require.NoError(t, err)
	assert.Equal(t, view.UpdatedAt, again.UpdatedAt)
}

func TestManager_UnknownService(t *testing.T) {
	m, _ := newTestManager(t, engagement.PolicyLatch)
	client := testClient("ABC999")
	client.ServiceID = "lgpd"

	_, err := m.Open(context.Background(), client)
	assert.ErrorIs(t, err, engagement.ErrNotFound)
}

func TestManager_DocumentsGate(t *testing.T) {
	m, _ := newTestManager(t, engagement.PolicyLatch)
	ctx := context.Background()
	client := testClient("XPTO123")

	var progress models.Progress
	var err error
	for _, doc := range []string{"Contrato Social", "Alterações Contratuais", "Documento Sócio 1", "Documento Sócio 2"} {
		progress, err = m.ReceiveDocument(ctx, client, doc, true)
		require.NoError(t, err)
	}
	assert.Equal(t, 15, progress.CompletionPercentage)

	// latch: un-receiving does not revert
	progress, err = m.ReceiveDocument(ctx, client, "Contrato Social", false)
	require.NoError(t, err)
	assert.Equal(t, 15, progress.CompletionPercentage)
}

func TestManager_ManualUncheckOfGateStage(t *testing.T) {
	m, _ := newTestManager(t, engagement.PolicyLatch)
	ctx := context.Background()
	client := testClient("XPTO123")

	for _, doc := range []string{"Contrato Social", "Alterações Contratuais", "Documento Sócio 1", "Documento Sócio 2"} {
		_, err := m.ReceiveDocument(ctx, client, doc, true)
		require.NoError(t, err)
	}

	progress, err := m.SetStage(ctx, client, engagement.StageDocumentsComplete, false)
	require.NoError(t, err)
	assert.Equal(t, 0, progress.CompletionPercentage)

	// a later command keeps the user's choice
	progress, err = m.PayInstallment(ctx, client, 1, true)
	require.NoError(t, err)
	assert.Equal(t, 0, progress.CompletionPercentage)

	view, err := m.Open(ctx, client)
	require.NoError(t, err)
	for _, st := range view.Stages {
		if st.Name == engagement.StageDocumentsComplete {
			assert.False(t, st.Completed)
		}
	}
}

func TestManager_TrackPolicyReverts(t *testing.T) {
	m, _ := newTestManager(t, engagement.PolicyTrack)
	ctx := context.Background()
	client := testClient("XPTO123")

	for i := 1; i <= 3; i++ {
		_, err := m.PayInstallment(ctx, client, i, true)
		require.NoError(t, err)
	}
	progress, err := m.Progress(ctx, client)
	require.NoError(t, err)
	assert.Equal(t, 10, progress.CompletionPercentage)

	progress, err = m.PayInstallment(ctx, client, 2, false)
	require.NoError(t, err)
	assert.Equal(t, 0, progress.CompletionPercentage)
}

func TestManager_ErrorsLeaveStateUntouched(t *testing.T) {
	m, repo := newTestManager(t, engagement.PolicyLatch)
	ctx := context.Background()
	client := testClient("XPTO123")
	_, err := m.Open(ctx, client)
	require.NoError(t, err)
	before, _ := repo.Get(ctx, "XPTO123")

	_, err = m.SetStage(ctx, client, "Inexistente", true)
	assert.ErrorIs(t, err, engagement.ErrNotFound)
	_, err = m.PayInstallment(ctx, client, 7, true)
	assert.ErrorIs(t, err, engagement.ErrNotFound)
	_, err = m.RecordMeeting(ctx, client, "", "notes")
	assert.ErrorIs(t, err, engagement.ErrValidation)

	after, _ := repo.Get(ctx, "XPTO123")
	assert.Equal(t, before, after)
}

func TestManager_Meetings(t *testing.T) {
	m, _ := newTestManager(t, engagement.PolicyLatch)
	ctx := context.Background()
	client := testClient("XPTO123")

	rec, err := m.RecordMeeting(ctx, client, "2024-05-02", "Alinhamento de cláusulas")
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)

	meetings, err := m.Meetings(ctx, client)
	require.NoError(t, err)
	require.Len(t, meetings, 1)
	assert.Equal(t, "2024-05-02", meetings[0].Date)
}

func TestManager_ClientsAreIsolated(t *testing.T) {
	m, _ := newTestManager(t, engagement.PolicyLatch)
	ctx := context.Background()
	a, b := testClient("AAA111"), testClient("BBB222")

	_, err := m.SetStage(ctx, a, "Primeira reunião", true)
	require.NoError(t, err)

	pa, err := m.Progress(ctx, a)
	require.NoError(t, err)
	pb, err := m.Progress(ctx, b)
	require.NoError(t, err)

	assert.Equal(t, 5, pa.CompletionPercentage)
	assert.Equal(t, 0, pb.CompletionPercentage)
}

func TestManager_SerializesSameClient(t *testing.T) {
	m, _ := newTestManager(t, engagement.PolicyLatch)
	ctx := context.Background()
	client := testClient("XPTO123")

	names := []string{
		"Primeira reunião", "Contrato enviado", "Contrato assinado", "Pagamento confirmado",
		"Documentação completa", "Minuta preliminar", "Reunião de validação", "Entrega final",
	}

	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			_, err := m.SetStage(ctx, client, name, true)
			assert.NoError(t, err)
		}(name)
	}
	wg.Wait()

	progress, err := m.Progress(ctx, client)
	require.NoError(t, err)
	assert.Equal(t, 100, progress.CompletionPercentage)
	assert.Equal(t, engagement.StageProjectCompleted, progress.CurrentStage)
}

func TestManager_Close(t *testing.T) {
	m, repo := newTestManager(t, engagement.PolicyLatch)
	ctx := context.Background()
	client := testClient("XPTO123")

	_, err := m.SetStage(ctx, client, "Primeira reunião", true)
	require.NoError(t, err)

	events, _ := m.Subscribe("XPTO123")
	require.NoError(t, m.Close(ctx, "XPTO123"))

	stored, _ := repo.Get(ctx, "XPTO123")
	assert.Nil(t, stored)

	_, open := <-events
	assert.False(t, open, "feed should be closed with the session")
	assert.Equal(t, 0, m.hub.Subscribers("XPTO123"))

	assert.ErrorIs(t, m.Close(ctx, "XPTO123"), ErrSessionNotFound)

	// a new visit starts from scratch
	progress, err := m.Progress(ctx, client)
	require.NoError(t, err)
	assert.Equal(t, 0, progress.CompletionPercentage)
}

func TestManager_ExpireIdle(t *testing.T) {
	m, repo := newTestManager(t, engagement.PolicyLatch)
	ctx := context.Background()

	clock := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	_, err := m.Open(ctx, testClient("OLD001"))
	require.NoError(t, err)

	clock = clock.Add(3 * time.Hour)
	_, err = m.Open(ctx, testClient("NEW002"))
	require.NoError(t, err)

	n, err := m.ExpireIdle(ctx, 2*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	old, _ := repo.Get(ctx, "OLD001")
	assert.Nil(t, old)
	fresh, _ := repo.Get(ctx, "NEW002")
	assert.NotNil(t, fresh)
}

func TestManager_PublishesProgress(t *testing.T) {
	m, _ := newTestManager(t, engagement.PolicyLatch)
	ctx := context.Background()
	client := testClient("XPTO123")
	_, err := m.Open(ctx, client)
	require.NoError(t, err)

	events, cancel := m.Subscribe("XPTO123")
	defer cancel()

	_, err = m.SetStage(ctx, client, "Primeira reunião", true)
	require.NoError(t, err)

	select {
	case ev := <-events:
		assert.Equal(t, CommandSetStage, ev.Command)
		assert.Equal(t, 5, ev.Progress.CompletionPercentage)
		assert.Equal(t, "Contrato enviado", ev.Progress.CurrentStage)
	case <-time.After(time.Second):
		t.Fatal("no progress event received")
	}

	assert.Equal(t, 1, m.hub.Subscribers("XPTO123"))
	cancel()
	assert.Equal(t, 0, m.hub.Subscribers("XPTO123"))
}

func TestManager_StoreExpiryEndsFeeds(t *testing.T) {
	m, repo := newTestManager(t, engagement.PolicyLatch)
	ctx := context.Background()
	client := testClient("XPTO123")

	_, err := m.SetStage(ctx, client, "Primeira reunião", true)
	require.NoError(t, err)

	events, cancel := m.Subscribe("XPTO123")
	defer cancel()

	// the store drops the session on its own, as a Redis TTL would
	require.NoError(t, repo.Delete(ctx, "XPTO123"))

	progress, err := m.Progress(ctx, client)
	require.NoError(t, err)
	assert.Equal(t, 0, progress.CompletionPercentage)

	select {
	case _, open := <-events:
		assert.False(t, open, "feed of the expired session should be closed")
	case <-time.After(time.Second):
		t.Fatal("feed of the expired session left open")
	}
	assert.Equal(t, 0, m.hub.Subscribers("XPTO123"))

	// feeds opened on the fresh session stay open
	fresh, cancelFresh := m.Subscribe("XPTO123")
	defer cancelFresh()
	_, err = m.Progress(ctx, client)
	require.NoError(t, err)
	assert.Equal(t, 1, m.hub.Subscribers("XPTO123"))
	assert.Empty(t, fresh)
}

type failingRepo struct {
	storage.Repository
}

func (failingRepo) Get(ctx context.Context, clientID string) (*models.Engagement, error) {
	return nil, errors.New("connection refused")
}

func (failingRepo) Ping(ctx context.Context) error {
	return errors.New("connection refused")
}

func TestManager_StoreFailures(t *testing.T) {
	m := NewManager(testCatalog(t), failingRepo{}, engagement.PolicyLatch)

	_, err := m.Progress(context.Background(), testClient("XPTO123"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, engagement.ErrNotFound)
	assert.Error(t, m.Ping(context.Background()))
}
