package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guesthairspa/salon/internal/queue"
	"github.com/guesthairspa/salon/internal/repository"
	"github.com/guesthairspa/salon/internal/storage"
	"github.com/guesthairspa/salon/internal/testutil"
)

const testBase = "http://cdn.test/media/promotions/"

type memBucket struct {
	objects map[string][]byte
	puts    int
}

func newMemBucket() *memBucket { return &memBucket{objects: map[string][]byte{}} }

func (b *memBucket) Put(_ context.Context, name string, r io.Reader) error {
	b.puts++
	if _, ok := b.objects[name]; ok {
		return storage.ErrObjectExists
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.objects[name] = data
	return nil
}

func (b *memBucket) Delete(_ context.Context, name string) error {
	delete(b.objects, name)
	return nil
}

func (b *memBucket) PublicURL(name string) string { return testBase + name }

func (b *memBucket) ObjectName(u string) (string, bool) {
	return strings.CutPrefix(u, testBase)
}

type countingPurger struct{ n int }

func (p *countingPurger) Purge(context.Context) error {
	p.n++
	return nil
}

type fakePublisher struct {
	events []queue.ContactSubmittedEvent
	err    error
}

func (p *fakePublisher) PublishContactSubmitted(_ context.Context, ev queue.ContactSubmittedEvent) error {
	p.events = append(p.events, ev)
	return p.err
}

func str(s string) *string { return &s }

type fixture struct {
	db     *sql.DB
	svc    *PromotionService
	repo   *repository.PromotionRepo
	bucket *memBucket
	purger *countingPurger
	clock  *testutil.Clock
}

func newPromotionFixture(t *testing.T) *fixture {
	t.Helper()
	clock := testutil.NewClock()
	db := testutil.TestDB(t)
	repo := repository.NewPromotionRepo(db).WithClock(func() time.Time { return clock.Advance(time.Second) })
	bucket := newMemBucket()
	purger := &countingPurger{}
	svc := NewPromotionService(repo, bucket, 5*1024*1024, purger).WithClock(clock.Now)
	return &fixture{db: db, svc: svc, repo: repo, bucket: bucket, purger: purger, clock: clock}
}

func validInput() PromotionInput {
	return PromotionInput{
		Title:       str("Coupe Enfant Gratuite"),
		Description: str("Pour chaque coupe adulte"),
		Image:       str("https://images.pexels.com/photos/1.jpeg"),
		ValidUntil:  str("2025-06-30"),
	}
}

func TestPromotionService_CreateWithURL(t *testing.T) {
	f := newPromotionFixture(t)
	ctx := context.Background()

	p, err := f.svc.Create(ctx, validInput(), nil)
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "2025-06-30", p.ValidUntilString())
	assert.Equal(t, 1, f.purger.n)
	assert.Zero(t, f.bucket.puts)

	list, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, p.ID, list[0].ID)
}

func TestPromotionService_CreateNewestFirst(t *testing.T) {
	f := newPromotionFixture(t)
	ctx := context.Background()

	in := validInput()
	in.Title = str("first")
	_, err := f.svc.Create(ctx, in, nil)
	require.NoError(t, err)
	in.Title = str("second")
	_, err = f.svc.Create(ctx, in, nil)
	require.NoError(t, err)

	list, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "second", list[0].Title)
}

func TestPromotionService_CreateValidation(t *testing.T) {
	f := newPromotionFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, PromotionInput{Title: str("   "), ValidUntil: str("30/06/2025")}, nil)
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.True(t, verrs.Has("title"))
	assert.True(t, verrs.Has("description"))
	assert.True(t, verrs.Has("image"))
	assert.Equal(t, MsgInvalidDate, verrs.Fields()["valid_until"])

	in := validInput()
	in.Image = str("javascript:alert(1)")
	_, err = f.svc.Create(ctx, in, nil)
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, MsgInvalidURL, verrs.Fields()["image"])

	n, err := f.repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, f.purger.n)
}

func TestPromotionService_CreateStripsMarkup(t *testing.T) {
	f := newPromotionFixture(t)
	in := validInput()
	in.Description = str(`Soins & <script>alert(1)</script>détente`)

	p, err := f.svc.Create(context.Background(), in, nil)
	require.NoError(t, err)
	assert.Equal(t, "Soins & détente", p.Description)
}

func TestPromotionService_CreateWithFile(t *testing.T) {
	f := newPromotionFixture(t)
	in := validInput()
	in.Image = nil

	img := &ImageFile{Filename: "Photo.PNG", Size: 3, Body: strings.NewReader("png")}
	p, err := f.svc.Create(context.Background(), in, img)
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(p.Image, testBase))
	name := strings.TrimPrefix(p.Image, testBase)
	assert.Regexp(t, regexp.MustCompile(`^\d+-[0-9a-z]{6}\.png$`), name)
	assert.True(t, strings.HasPrefix(name, "1746090000000-"))
	assert.Equal(t, []byte("png"), f.bucket.objects[name])
}

func TestPromotionService_UploadImageTooLarge(t *testing.T) {
	f := newPromotionFixture(t)
	ctx := context.Background()

	_, err := f.svc.UploadImage(ctx, &ImageFile{Filename: "big.jpg", Size: 5*1024*1024 + 1, Body: strings.NewReader("x")})
	assert.ErrorIs(t, err, ErrImageTooLarge)
	assert.Zero(t, f.bucket.puts)

	// size lied about: the stream is capped while copying
	body := bytes.Repeat([]byte("a"), 5*1024*1024+10)
	_, err = f.svc.UploadImage(ctx, &ImageFile{Filename: "big.jpg", Size: 10, Body: bytes.NewReader(body)})
	assert.ErrorIs(t, err, ErrImageTooLarge)
}

func TestPromotionService_UploadImageExactLimit(t *testing.T) {
	f := newPromotionFixture(t)
	body := bytes.Repeat([]byte("a"), 5*1024*1024)

	u, err := f.svc.UploadImage(context.Background(), &ImageFile{Filename: "ok.webp", Size: int64(len(body)), Body: bytes.NewReader(body)})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(u, ".webp"))
}

func TestPromotionService_UploadImageRejectsNonImage(t *testing.T) {
	f := newPromotionFixture(t)
	_, err := f.svc.UploadImage(context.Background(), &ImageFile{Filename: "notes.pdf", Size: 3, Body: strings.NewReader("pdf")})
	assert.ErrorIs(t, err, ErrUnsupportedImage)
	assert.Zero(t, f.bucket.puts)
}

func TestPromotionService_UpdatePartial(t *testing.T) {
	f := newPromotionFixture(t)
	ctx := context.Background()

	p, err := f.svc.Create(ctx, validInput(), nil)
	require.NoError(t, err)

	got, err := f.svc.Update(ctx, p.ID, PromotionInput{Title: str("Nouveau titre")}, nil)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Nouveau titre", got.Title)
	assert.Equal(t, p.Description, got.Description)
	assert.Equal(t, p.Image, got.Image)
	assert.Equal(t, "2025-06-30", got.ValidUntilString())
	assert.Equal(t, 2, f.purger.n)

	_, err = f.svc.Update(ctx, p.ID, PromotionInput{Title: str("")}, nil)
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.True(t, verrs.Has("title"))
}

func TestPromotionService_UpdateReplacesUploadedImage(t *testing.T) {
	f := newPromotionFixture(t)
	ctx := context.Background()
	in := validInput()
	in.Image = nil

	p, err := f.svc.Create(ctx, in, &ImageFile{Filename: "a.jpg", Size: 1, Body: strings.NewReader("a")})
	require.NoError(t, err)
	oldName := strings.TrimPrefix(p.Image, testBase)

	f.clock.Advance(time.Second)
	got, err := f.svc.Update(ctx, p.ID, PromotionInput{}, &ImageFile{Filename: "b.jpg", Size: 1, Body: strings.NewReader("b")})
	require.NoError(t, err)
	assert.NotEqual(t, p.Image, got.Image)

	_, stillThere := f.bucket.objects[oldName]
	assert.False(t, stillThere)
	assert.Len(t, f.bucket.objects, 1)
}

func TestPromotionService_UpdateUnknownID(t *testing.T) {
	f := newPromotionFixture(t)
	got, err := f.svc.Update(context.Background(), "missing", PromotionInput{Title: str("Offre")}, &ImageFile{Filename: "a.jpg", Size: 1, Body: strings.NewReader("a")})
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Zero(t, f.bucket.puts)
}

func TestPromotionService_Delete(t *testing.T) {
	f := newPromotionFixture(t)
	ctx := context.Background()
	in := validInput()
	in.Image = nil

	p, err := f.svc.Create(ctx, in, &ImageFile{Filename: "a.gif", Size: 1, Body: strings.NewReader("a")})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, p.ID))
	require.NoError(t, f.svc.Delete(ctx, p.ID))
	assert.Empty(t, f.bucket.objects)

	list, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestPromotionService_DeleteKeepsForeignImage(t *testing.T) {
	f := newPromotionFixture(t)
	ctx := context.Background()

	p, err := f.svc.Create(ctx, validInput(), nil)
	require.NoError(t, err)
	require.NoError(t, f.bucket.Put(ctx, "other.png", strings.NewReader("x")))

	require.NoError(t, f.svc.Delete(ctx, p.ID))
	assert.Len(t, f.bucket.objects, 1)
}

func TestObjectName(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	name, err := objectName(now, ".jpg")
	require.NoError(t, err)
	assert.Regexp(t, `^1700000000123-[0-9a-z]{6}\.jpg$`, name)
}

func newContactService(t *testing.T, pub Publisher) (*ContactService, *repository.ContactRepo) {
	t.Helper()
	repo := repository.NewContactRepo(testutil.TestDB(t))
	return NewContactService(repo, pub), repo
}

func TestContactService_Submit(t *testing.T) {
	pub := &fakePublisher{}
	svc, _ := newContactService(t, pub)
	ctx := context.Background()

	c, err := svc.Submit(ctx, ContactInput{Nom: " Amina ", Email: "amina@example.com", Message: "Bonjour <b>!</b>"})
	require.NoError(t, err)
	assert.False(t, c.Read)
	assert.Equal(t, "Amina", c.Nom)
	assert.Equal(t, "Bonjour !", c.Message)
	assert.Equal(t, "", c.Telephone)

	require.Len(t, pub.events, 1)
	assert.Equal(t, c.ID, pub.events[0].ContactID)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].Read)
}

func TestContactService_SubmitValidation(t *testing.T) {
	pub := &fakePublisher{}
	svc, _ := newContactService(t, pub)

	_, err := svc.Submit(context.Background(), ContactInput{Email: "not-an-email"})
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, MsgRequired, verrs.Fields()["nom"])
	assert.Equal(t, MsgRequired, verrs.Fields()["message"])
	assert.Equal(t, MsgInvalidMail, verrs.Fields()["email"])
	assert.Empty(t, pub.events)
}

func TestContactService_PublishFailureIsNotFatal(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	svc, repo := newContactService(t, pub)
	ctx := context.Background()

	c, err := svc.Submit(ctx, ContactInput{Nom: "A", Email: "a@example.com", Message: "m"})
	require.NoError(t, err)

	_, err = repo.GetByID(ctx, c.ID)
	assert.NoError(t, err)
}

func TestContactService_MarkReadAndDelete(t *testing.T) {
	svc, repo := newContactService(t, nil)
	ctx := context.Background()

	c, err := svc.Submit(ctx, ContactInput{Nom: "A", Email: "a@example.com", Message: "m"})
	require.NoError(t, err)

	require.NoError(t, svc.MarkRead(ctx, c.ID))
	got, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, got.Read)

	require.NoError(t, svc.Delete(ctx, c.ID))
	require.NoError(t, svc.Delete(ctx, "missing"))
	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestDashboardService_Get(t *testing.T) {
	db := testutil.TestDB(t)
	clock := testutil.NewClock()
	tick := func() time.Time { return clock.Advance(time.Second) }
	promos := repository.NewPromotionRepo(db).WithClock(tick)
	contacts := repository.NewContactRepo(db).WithClock(tick)
	ctx := context.Background()

	psvc := NewPromotionService(promos, newMemBucket(), 1024, nil)
	for _, title := range []string{"p1", "p2", "p3", "p4"} {
		in := validInput()
		in.Title = str(title)
		_, err := psvc.Create(ctx, in, nil)
		require.NoError(t, err)
	}
	csvc := NewContactService(contacts, nil)
	a, err := csvc.Submit(ctx, ContactInput{Nom: "A", Email: "a@example.com", Message: "m"})
	require.NoError(t, err)
	_, err = csvc.Submit(ctx, ContactInput{Nom: "B", Email: "b@example.com", Message: "m"})
	require.NoError(t, err)
	require.NoError(t, csvc.MarkRead(ctx, a.ID))

	d, err := NewDashboardService(promos, contacts).Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, DashboardStats{ActivePromotions: 4, Clients: 2, Requests: 2, Unread: 1, Services: 4}, d.Stats)
	require.Len(t, d.LatestPromotions, 3)
	assert.Equal(t, "p4", d.LatestPromotions[0].Title)
	require.Len(t, d.Contacts, 2)
	assert.Equal(t, "B", d.Contacts[0].Nom)
}

func TestPromotionService_TextMinLength(t *testing.T) {
	f := newPromotionFixture(t)
	in := validInput()
	in.Title = str(" A ")
	in.Description = str("é")

	_, err := f.svc.Create(context.Background(), in, nil)
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, map[string]string{"title": MsgTooShort, "description": MsgTooShort}, verrs.Fields())

	in.Title = str("Ok")
	in.Description = str("Ok")
	_, err = f.svc.Create(context.Background(), in, nil)
	require.NoError(t, err)
}

func TestPromotionService_ImageURLTooLong(t *testing.T) {
	f := newPromotionFixture(t)
	in := validInput()
	in.Image = str("https://images.pexels.com/" + strings.Repeat("a", MaxImageURLLen))

	_, err := f.svc.Create(context.Background(), in, nil)
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, MsgTooLong, verrs.Fields()["image"])

	n, err := f.repo.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPromotionService_UpdateFailureDiscardsUpload(t *testing.T) {
	f := newPromotionFixture(t)
	ctx := context.Background()

	p, err := f.svc.Create(ctx, validInput(), nil)
	require.NoError(t, err)

	_, err = f.db.Exec(`CREATE TRIGGER promotions_readonly BEFORE UPDATE ON promotions
		BEGIN SELECT RAISE(ABORT, 'read only'); END`)
	require.NoError(t, err)

	got, err := f.svc.Update(ctx, p.ID, PromotionInput{}, &ImageFile{Filename: "new.png", Size: 1, Body: strings.NewReader("a")})
	require.Error(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 1, f.bucket.puts)
	assert.Empty(t, f.bucket.objects)
}

func TestPromotionService_UpdateNeverClearsColumns(t *testing.T) {
	f := newPromotionFixture(t)
	ctx := context.Background()

	p, err := f.svc.Create(ctx, validInput(), nil)
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, p.ID, PromotionInput{Image: str(""), ValidUntil: str(" ")}, nil)
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, map[string]string{"image": MsgRequired, "valid_until": MsgRequired}, verrs.Fields())

	got, err := f.repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Image, got.Image)
	assert.Equal(t, "2025-06-30", got.ValidUntilString())
}
