//go:build integration

package firestore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"testing"
	"time"

	domain "github.com/barmagly/ecommerce-website-backend-sub000/internal/domain"
	pconfig "github.com/barmagly/ecommerce-website-backend-sub000/internal/platform/config"
	pfirestore "github.com/barmagly/ecommerce-website-backend-sub000/internal/platform/firestore"
	"github.com/barmagly/ecommerce-website-backend-sub000/internal/repositories"
)

const firestoreEmulatorImage = "gcr.io/google.com/cloudsdktool/cloud-sdk:emulators"

func TestOrderPlacementIntegration(t *testing.T) {
	provider := startEmulatorProvider(t)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	products := pfirestore.NewBaseRepository[productDocument](provider, productCollection, nil, nil)
	carts := pfirestore.NewBaseRepository[cartDocument](provider, cartCollection, nil, nil)

	now := time.Now().UTC().Truncate(time.Millisecond)
	if _, err := products.Set(ctx, "p1", productDocument{
		Name:         "Desk Lamp",
		Price:        1000,
		Stock:        5,
		ShippingCost: 200,
		DeliveryDays: 3,
		CreatedAt:    now,
		UpdatedAt:    now,
	}); err != nil {
		t.Fatalf("seed product failed: %v", err)
	}
	seedCart := func(quantity int) {
		t.Helper()
		if _, err := carts.Set(ctx, "u1", cartDocument{
			Lines:     []cartLineDocument{{ProductID: "p1", Quantity: quantity}},
			CreatedAt: now,
			UpdatedAt: now,
		}); err != nil {
			t.Fatalf("seed cart failed: %v", err)
		}
	}

	repo, err := NewOrderRepository(provider)
	if err != nil {
		t.Fatalf("NewOrderRepository returned error: %v", err)
	}
	address := domain.ShippingAddress{Name: "Jo Doe", Line1: "1 Main St", City: "Cairo", Region: "EG"}

	// Requesting more than the available stock must fail and leave both the
	// counter and the cart untouched.
	seedCart(10)
	_, err = repo.PlaceOrder(ctx, repositories.PlaceOrderRequest{
		OrderID:         "ord-reject",
		Number:          "ORD-1",
		UserID:          "u1",
		Region:          "EG",
		ShippingAddress: address,
		Now:             now,
	})
	var orderErr *repositories.OrderError
	if !errors.As(err, &orderErr) || orderErr.Code != repositories.OrderErrorInsufficientStock {
		t.Fatalf("expected insufficient stock error, got %v", err)
	}
	if got := productStock(ctx, t, products, "p1"); got != 5 {
		t.Fatalf("expected stock untouched at 5, got %d", got)
	}
	if _, err := carts.Get(ctx, "u1"); err != nil {
		t.Fatalf("expected cart preserved after rejection: %v", err)
	}

	// A satisfiable order decrements stock and consumes the cart atomically.
	seedCart(2)
	placed, err := repo.PlaceOrder(ctx, repositories.PlaceOrderRequest{
		OrderID:         "ord-1",
		Number:          "ORD-2",
		UserID:          "u1",
		Region:          "EG",
		ShippingAddress: address,
		Now:             now,
	})
	if err != nil {
		t.Fatalf("PlaceOrder returned error: %v", err)
	}
	if placed.Subtotal != 2000 || placed.Total != 2200 {
		t.Fatalf("unexpected totals: %+v", placed)
	}
	if got := productStock(ctx, t, products, "p1"); got != 3 {
		t.Fatalf("expected stock 3 after placement, got %d", got)
	}
	if _, err := carts.Get(ctx, "u1"); !isNotFound(err) {
		t.Fatalf("expected cart deleted, got %v", err)
	}

	// Cancelling restocks every line.
	cancelled := placed
	cancelled.Status = domain.OrderStatusCancelled
	cancelledAt := now.Add(time.Minute)
	cancelled.CancelledAt = &cancelledAt
	if _, err := repo.UpdateStatus(ctx, repositories.OrderStatusUpdateRequest{
		Order:          cancelled,
		ExpectedStatus: domain.OrderStatusPending,
		Now:            cancelledAt,
	}); err != nil {
		t.Fatalf("cancel transition failed: %v", err)
	}
	if got := productStock(ctx, t, products, "p1"); got != 5 {
		t.Fatalf("expected stock restored to 5 after cancel, got %d", got)
	}

	// Reinstating deducts the same quantities again.
	reinstated := cancelled
	reinstated.Status = domain.OrderStatusProcessing
	reinstated.CancelledAt = nil
	if _, err := repo.UpdateStatus(ctx, repositories.OrderStatusUpdateRequest{
		Order:          reinstated,
		ExpectedStatus: domain.OrderStatusCancelled,
		Now:            cancelledAt.Add(time.Minute),
	}); err != nil {
		t.Fatalf("reinstate transition failed: %v", err)
	}
	if got := productStock(ctx, t, products, "p1"); got != 3 {
		t.Fatalf("expected stock 3 after reinstatement, got %d", got)
	}

	// A stale expected status must surface as a conflict.
	_, err = repo.UpdateStatus(ctx, repositories.OrderStatusUpdateRequest{
		Order:          cancelled,
		ExpectedStatus: domain.OrderStatusPending,
		Now:            cancelledAt.Add(2 * time.Minute),
	})
	orderErr = nil
	if !errors.As(err, &orderErr) || orderErr.Code != repositories.OrderErrorStatusConflict {
		t.Fatalf("expected status conflict, got %v", err)
	}
}

func productStock(ctx context.Context, t *testing.T, repo *pfirestore.BaseRepository[productDocument], id string) int {
	t.Helper()
	doc, err := repo.Get(ctx, id)
	if err != nil {
		t.Fatalf("load product %s failed: %v", id, err)
	}
	return doc.Data.Stock
}

func isNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

func startEmulatorProvider(t *testing.T) *pfirestore.Provider {
	t.Helper()
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not available: " + err.Error())
	}
	ensureDockerDaemon(t)

	port := freePort(t)
	endpoint := fmt.Sprintf("127.0.0.1:%d", port)
	containerID := startFirestoreEmulator(t, port)
	t.Cleanup(func() { stopContainer(containerID) })

	waitForEndpoint(t, endpoint, 30*time.Second)

	provider := pfirestore.NewProvider(pconfig.FirestoreConfig{
		ProjectID:    "test-project",
		EmulatorHost: endpoint,
	})
	t.Cleanup(func() {
		_ = provider.Close(context.Background())
	})
	return provider
}

func freePort(t *testing.T) int {
	t.Helper()
	addr, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("unable to allocate port: %v", err)
	}
	defer addr.Close()
	return addr.Addr().(*net.TCPAddr).Port
}

func startFirestoreEmulator(t *testing.T, port int) string {
	t.Helper()
	args := []string{
		"run", "-d", "--rm",
		"-p", fmt.Sprintf("%d:8080", port),
		firestoreEmulatorImage,
		"gcloud", "beta", "emulators", "firestore", "start",
		"--host-port=0.0.0.0:8080",
		"--quiet",
	}

	cmd := exec.Command("docker", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("failed to start firestore emulator: %v - %s", err, string(out))
	}
	id := strings.TrimSpace(string(out))
	if id == "" {
		t.Fatalf("docker returned empty container id")
	}
	// Shorten the ID to match docker CLI behaviour for stop/remove commands.
	if len(id) > 12 {
		id = id[:12]
	}
	return id
}

func stopContainer(id string) {
	if id == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "docker", "stop", id)
	_ = cmd.Run()
}

func waitForEndpoint(t *testing.T, endpoint string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", endpoint, 500*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		lastErr = err
		time.Sleep(250 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = errors.New("timeout waiting for endpoint")
	}
	t.Fatalf("emulator did not become ready: %v", lastErr)
}

func ensureDockerDaemon(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, "docker", "info")
	if err := cmd.Run(); err != nil {
		t.Skip("docker daemon unavailable: " + err.Error())
	}
}
