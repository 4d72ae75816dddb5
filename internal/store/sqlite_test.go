package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/models"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestMigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trust.db")

	s1, err := NewSQLiteStore(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	s1.Close()

	// Reopening must re-run migrate against the applied schema
	// without error.
	s2, err := NewSQLiteStore(context.Background(), path)
	if err != nil {
		t.Fatalf("second open failed: %v", err)
	}
	s2.Close()
}

func TestAgentNotFoundIsNil(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	agents, err := s.FindAgentsByName(ctx, "ghost")
	if err != nil {
		t.Fatal(err)
	}
	if len(agents) != 0 {
		t.Fatalf("expected no agents, got %d", len(agents))
	}

	fr, err := s.GetFeedbackRequest(ctx, uuid.New())
	if err != nil {
		t.Fatal(err)
	}
	if fr != nil {
		t.Fatal("missing feedback request must be (nil, nil)")
	}
}

func TestAgentNameLookupCaseInsensitive(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if _, err := s.CreateAgent(ctx, "Helper", 1); err != nil {
		t.Fatal(err)
	}
	agents, err := s.FindAgentsByName(ctx, "helper")
	if err != nil {
		t.Fatal(err)
	}
	if len(agents) != 1 {
		t.Fatalf("expected 1 agent, got %d", len(agents))
	}
}

func TestFeedbackLifecyclePersistence(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	fr := &models.FeedbackRequest{
		ClientAddress: "0x1111111111111111111111111111111111111111",
		ToAgent:       "helper",
		Comment:       "great run",
	}
	if err := s.CreateFeedbackRequest(ctx, fr); err != nil {
		t.Fatal(err)
	}
	if fr.Status != models.FeedbackPending {
		t.Fatalf("new request must be pending, got %s", fr.Status)
	}

	approvedAt := time.Now()
	if err := s.ApproveFeedbackRequest(ctx, fr.ID, approvedAt, 7); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetFeedbackRequest(ctx, fr.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.FeedbackApproved || !got.Approved || got.ApprovedForDays != 7 {
		t.Fatalf("approval not persisted: %+v", got)
	}
	if got.ApprovedAt == nil {
		t.Fatal("approvedAt missing")
	}

	if err := s.SetFeedbackAuth(ctx, fr.ID, []byte(`{"ok":true}`)); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetFeedbackRequest(ctx, fr.ID)
	if got.Status != models.FeedbackAuthorized || len(got.AuthBlob) == 0 {
		t.Fatalf("authorization not persisted: %+v", got)
	}

	if err := s.MarkFeedbackGiven(ctx, fr.ID, "0xdeadbeef"); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetFeedbackRequest(ctx, fr.ID)
	if got.Status != models.FeedbackGiven || got.TxHash != "0xdeadbeef" {
		t.Fatalf("fulfillment not persisted: %+v", got)
	}
}

func TestListFeedbackNewestFirst(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	client := "0x1111111111111111111111111111111111111111"

	for _, comment := range []string{"first", "second"} {
		fr := &models.FeedbackRequest{ClientAddress: client, ToAgent: "helper", Comment: comment}
		if err := s.CreateFeedbackRequest(ctx, fr); err != nil {
			t.Fatal(err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	list, err := s.ListFeedbackByClient(ctx, client)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(list))
	}
	if list[0].Comment != "second" {
		t.Fatalf("expected newest first, got %q", list[0].Comment)
	}
}

func TestUpsertTaskIdempotent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	task := &models.Task{ID: "task-1", Type: "thread", Status: "open", Subject: "original"}
	if err := s.UpsertTask(ctx, task); err != nil {
		t.Fatal(err)
	}
	first, err := s.GetTask(ctx, "task-1")
	if err != nil {
		t.Fatal(err)
	}

	time.Sleep(5 * time.Millisecond)

	// Second upsert with a different subject must keep the original
	// subject but bump the activity timestamps.
	task2 := &models.Task{ID: "task-1", Type: "thread", Status: "open", Subject: "changed"}
	if err := s.UpsertTask(ctx, task2); err != nil {
		t.Fatal(err)
	}
	second, err := s.GetTask(ctx, "task-1")
	if err != nil {
		t.Fatal(err)
	}
	if second.Subject != "original" {
		t.Fatalf("upsert must not overwrite the subject, got %q", second.Subject)
	}
	if !second.LastMessageAt.After(first.LastMessageAt) {
		t.Fatal("upsert must bump last_message_at")
	}
}

func TestMessageListUnionAndOrdering(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	msgs := []models.Message{
		{From: "0xAAAA", To: "helper", Body: "sent"},
		{From: "helper", To: "0xAAAA", Body: "received"},
		{From: "other", To: "someone", Body: "unrelated"},
	}
	for i := range msgs {
		if err := s.AppendMessage(ctx, &msgs[i]); err != nil {
			t.Fatal(err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	list, err := s.ListMessagesForClient(ctx, "0xaaaa")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("expected sent and received, got %d", len(list))
	}
	if list[0].Body != "received" {
		t.Fatalf("expected newest first, got %q", list[0].Body)
	}
}

func TestAppendMessageBumpsTask(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	task := &models.Task{ID: "task-2", Type: "thread", Status: "open"}
	if err := s.UpsertTask(ctx, task); err != nil {
		t.Fatal(err)
	}
	before, _ := s.GetTask(ctx, "task-2")

	time.Sleep(5 * time.Millisecond)

	taskID := "task-2"
	if err := s.AppendMessage(ctx, &models.Message{TaskID: &taskID, From: "a", To: "b", Body: "hi"}); err != nil {
		t.Fatal(err)
	}
	after, _ := s.GetTask(ctx, "task-2")
	if !after.LastMessageAt.After(before.LastMessageAt) {
		t.Fatal("message append must bump the task's last_message_at")
	}
}

func TestMarkMessageRead(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	m := &models.Message{From: "a", To: "b", Body: "hi"}
	if err := s.AppendMessage(ctx, m); err != nil {
		t.Fatal(err)
	}

	found, err := s.MarkMessageRead(ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("existing message must be found")
	}

	found, err = s.MarkMessageRead(ctx, "no-such-id")
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatal("missing message must report not found")
	}
}

func TestAssociationUpsertFillsSignatures(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	a := &models.Association{
		ID:                 "0xdigest",
		Initiator:          "0x1111111111111111111111111111111111111111",
		Approver:           "0x2222222222222222222222222222222222222222",
		InterfaceID:        "0x00000000",
		Data:               "0x",
		InitiatorSignature: "0xsig1",
	}
	if err := s.PutAssociation(ctx, a); err != nil {
		t.Fatal(err)
	}

	// Second submission adds the approver signature without erasing
	// the initiator's.
	b := *a
	b.InitiatorSignature = ""
	b.ApproverSignature = "0xsig2"
	if err := s.PutAssociation(ctx, &b); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetAssociation(ctx, "0xdigest")
	if err != nil {
		t.Fatal(err)
	}
	if got.InitiatorSignature != "0xsig1" || got.ApproverSignature != "0xsig2" {
		t.Fatalf("signatures not merged: %+v", got)
	}
}

func TestAggregates(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if _, err := s.CreateAgent(ctx, "helper", 1); err != nil {
		t.Fatal(err)
	}
	fr := &models.FeedbackRequest{
		ClientAddress: "0x1111111111111111111111111111111111111111",
		ToAgent:       "helper",
		Comment:       "hi",
	}
	if err := s.CreateFeedbackRequest(ctx, fr); err != nil {
		t.Fatal(err)
	}

	agents, err := s.CountAgents(ctx)
	if err != nil || agents != 1 {
		t.Fatalf("expected 1 agent, got %d (%v)", agents, err)
	}
	byStatus, err := s.CountFeedbackByStatus(ctx)
	if err != nil || byStatus[models.FeedbackPending] != 1 {
		t.Fatalf("expected 1 pending, got %v (%v)", byStatus, err)
	}
	last, err := s.LastActivity(ctx)
	if err != nil || last == nil {
		t.Fatalf("expected last activity, got %v (%v)", last, err)
	}
}
