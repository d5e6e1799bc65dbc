package services

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/chachabrian/mooveit-dispatch/internal/config"
	"github.com/chachabrian/mooveit-dispatch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReceipt(t *testing.T) {
	txn := "CASH-1-9"
	p := &models.Payment{
		BookingID:     9,
		Amount:        12.5,
		Method:        models.PaymentCash,
		Status:        models.PaymentStatusCompleted,
		TransactionID: &txn,
		PaidAt:        &testNow,
	}
	p.ID = 4

	r := NewReceipt(p, testNow)
	assert.Equal(t, "receipts/4.json", r.Key())
	assert.Equal(t, txn, r.TransactionID)
	assert.Equal(t, uint(9), r.BookingID)
}

func TestLocalReceiptStore_Save(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalReceiptStore(dir)
	require.NoError(t, err)

	r := Receipt{PaymentID: 7, BookingID: 3, Amount: 20, Method: models.PaymentCard, Status: models.PaymentStatusCompleted, IssuedAt: testNow}
	path, err := store.Save(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "receipts", "7.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got Receipt
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, r.PaymentID, got.PaymentID)
	assert.Equal(t, models.PaymentStatusCompleted, got.Status)

	// A refund replaces the earlier receipt.
	r.Status = models.PaymentStatusRefunded
	_, err = store.Save(context.Background(), r)
	require.NoError(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, models.PaymentStatusRefunded, got.Status)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestNewReceiptStore_FallsBackToLocal(t *testing.T) {
	store, err := NewReceiptStore(config.AWSConfig{Region: "eu-west-1"}, t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &LocalReceiptStore{}, store)
}

func TestNewReceiptStore_S3WhenConfigured(t *testing.T) {
	store, err := NewReceiptStore(config.AWSConfig{
		Region:          "eu-west-1",
		AccessKeyID:     "AKIAEXAMPLE",
		SecretAccessKey: "secret",
		Bucket:          "dispatch-receipts",
	}, t.TempDir())
	require.NoError(t, err)

	s3Store, ok := store.(*S3ReceiptStore)
	require.True(t, ok)
	assert.Equal(t, "dispatch-receipts", s3Store.bucket)
}

func TestAvailabilityKey(t *testing.T) {
	assert.Equal(t, "driver:availability:42", availabilityKey(42))
}
