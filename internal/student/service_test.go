package student

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(NewMemory())
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	t.Run("regular student needs enrollment and year", func(t *testing.T) {
		_, err := svc.Register(ctx, Student{ID: "CS-1", Name: "Asha", Branch: "Computer"})
		assert.Error(t, err)

		_, err = svc.Register(ctx, Student{ID: "CS-1", Name: "Asha", Branch: "Computer", EnrollNo: "EN-1", YearOfStudy: "ZZ"})
		assert.Error(t, err)

		st, err := svc.Register(ctx, Student{ID: "CS-1", Name: "Asha", Branch: "Computer", EnrollNo: "EN-1", YearOfStudy: "FY"})
		require.NoError(t, err)
		assert.False(t, st.CreatedAt.IsZero())
	})

	t.Run("staff skips enrollment and year", func(t *testing.T) {
		st, err := svc.Register(ctx, Student{ID: "ST-1", Name: "Kiran", Branch: BranchStaff})
		require.NoError(t, err)
		assert.Empty(t, st.EnrollNo)
		assert.Empty(t, st.YearOfStudy)
	})

	t.Run("empty id or name rejected", func(t *testing.T) {
		_, err := svc.Register(ctx, Student{ID: "  ", Name: "X", Branch: BranchStaff})
		assert.Error(t, err)
		_, err = svc.Register(ctx, Student{ID: "Y-1", Name: " ", Branch: BranchStaff})
		assert.Error(t, err)
	})
}

func TestRegisterDuplicateIDCaseInsensitive(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, Student{ID: "CS-1", Name: "Asha", Branch: BranchStaff})
	require.NoError(t, err)

	_, err = svc.Register(ctx, Student{ID: "cs-1", Name: "Other", Branch: BranchStaff})
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestResolveNormalizes(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, Student{ID: "ID123", Name: "Asha", Branch: BranchStaff})
	require.NoError(t, err)

	a, err := svc.Resolve(ctx, " ID123 ")
	require.NoError(t, err)
	b, err := svc.Resolve(ctx, "id123")
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)
}

func TestResolveNotFound(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Resolve(context.Background(), " Missing-1 ")
	var nf NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "missing-1", nf.ID)
}

func TestUpdateRename(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Register(ctx, Student{ID: "CS-1", Name: "Asha", Branch: BranchStaff})
	require.NoError(t, err)

	t.Run("rename keeps created_at", func(t *testing.T) {
		st, err := svc.Update(ctx, "CS-1", Student{ID: "CS-2", Name: "Asha", Branch: BranchStaff})
		require.NoError(t, err)
		assert.Equal(t, created.CreatedAt, st.CreatedAt)

		_, err = svc.Resolve(ctx, "CS-1")
		assert.Error(t, err)
		_, err = svc.Resolve(ctx, "CS-2")
		assert.NoError(t, err)
	})

	t.Run("rename collision rejected", func(t *testing.T) {
		_, err := svc.Register(ctx, Student{ID: "CS-3", Name: "Ravi", Branch: BranchStaff})
		require.NoError(t, err)

		_, err = svc.Update(ctx, "CS-3", Student{ID: "cs-2", Name: "Ravi", Branch: BranchStaff})
		assert.ErrorIs(t, err, ErrDuplicateID)
	})
}

func TestUpdateCardStatusLifecycle(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	st, err := svc.Register(ctx, Student{ID: "CS-1", Name: "Asha", Branch: BranchStaff})
	require.NoError(t, err)
	assert.Equal(t, CardNone, st.CardStatus)

	st, err = svc.Update(ctx, "CS-1", Student{ID: "CS-1", Name: "Asha", Branch: BranchStaff, IDCardImageURL: "https://cdn.example/a.jpg"})
	require.NoError(t, err)
	assert.Equal(t, CardPending, st.CardStatus)

	require.NoError(t, svc.SetCardStatus(ctx, "CS-1", CardVerified))

	t.Run("same image keeps verification", func(t *testing.T) {
		st, err := svc.Update(ctx, "CS-1", Student{ID: "CS-1", Name: "Asha B", Branch: BranchStaff, IDCardImageURL: "https://cdn.example/a.jpg"})
		require.NoError(t, err)
		assert.Equal(t, CardVerified, st.CardStatus)
	})

	t.Run("replaced image resets verification", func(t *testing.T) {
		st, err := svc.Update(ctx, "CS-1", Student{ID: "CS-1", Name: "Asha B", Branch: BranchStaff, IDCardImageURL: "https://cdn.example/b.jpg"})
		require.NoError(t, err)
		assert.Equal(t, CardPending, st.CardStatus)
	})

	t.Run("removed image clears status", func(t *testing.T) {
		st, err := svc.Update(ctx, "CS-1", Student{ID: "CS-1", Name: "Asha B", Branch: BranchStaff})
		require.NoError(t, err)
		assert.Equal(t, CardNone, st.CardStatus)
	})
}

func TestDelete(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, Student{ID: "CS-1", Name: "Asha", Branch: BranchStaff})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "cs-1"))

	var nf NotFoundError
	assert.ErrorAs(t, svc.Delete(ctx, "CS-1"), &nf)
}
