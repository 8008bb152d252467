package job

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/maauso/audiocards/internal/archive"
	"github.com/maauso/audiocards/internal/audio"
	"github.com/maauso/audiocards/internal/loudness"
	"github.com/maauso/audiocards/internal/metrics"
	"github.com/maauso/audiocards/internal/storage"
	"github.com/maauso/audiocards/internal/transcript"
)

// Artifact file names and content types.
const (
	NormalizedFileName = "normalized.mp3"
	DefaultSuffix      = "Theme-Part-User"
	AnkiFileName       = "anki_output.tsv"

	ContentTypeMP3 = "audio/mpeg"
	ContentTypeZip = "application/zip"
	ContentTypeTSV = "text/tab-separated-values"
)

// Service errors.
var (
	// ErrJobNotCompleted is returned when an artifact is requested before the job completed.
	ErrJobNotCompleted = errors.New("job not completed")
	// ErrSourceKind is returned when a source job cannot feed the requested operation.
	ErrSourceKind = errors.New("source job has the wrong kind")
	// ErrMissingInput is returned when neither inline data nor a source job is given.
	ErrMissingInput = errors.New("missing input")
)

// Pipeline is the set of audio operations a Service runs.
type Pipeline interface {
	Normalize(ctx context.Context, data []byte, target loudness.Target, progress audio.Progress) ([]byte, error)
	Cut(ctx context.Context, data, transcript []byte, suffix string, progress audio.Progress) ([]archive.Entry, error)
	Join(ctx context.Context, files []archive.Entry, mode audio.Mode, progress audio.Progress) ([]byte, error)
	Pair(table []byte, names []string, progress audio.Progress) ([]byte, error)
}

// NormalizeInput is the request of a normalize job.
type NormalizeInput struct {
	Audio    []byte
	Target   loudness.Target
	PushToS3 bool
}

// CutInput is the request of a cut job. SourceJobID names a completed
// normalize job used instead of Audio.
type CutInput struct {
	Audio       []byte
	SourceJobID string
	Transcript  []byte
	Suffix      string
	PushToS3    bool
}

// JoinInput is the request of a join job. SourceJobID names a completed cut
// job whose chunks are used instead of Files.
type JoinInput struct {
	Files       []archive.Entry
	SourceJobID string
	Mode        audio.Mode
	Suffix      string
	PushToS3    bool
}

// AnkiInput is the request of an anki job. SourceJobID names a completed cut
// job whose chunk names are used instead of FileNames.
type AnkiInput struct {
	Table       []byte
	FileNames   []string
	SourceJobID string
	PushToS3    bool
}

// result is what a job body produces before it is stored.
type result struct {
	fileName    string
	contentType string
	data        []byte
	names       []string
}

// runFunc is the body of a job.
type runFunc func(ctx context.Context, progress audio.Progress) (result, error)

// Service creates jobs and runs them in the background.
type Service struct {
	repo     Repository
	pipeline Pipeline
	storage  storage.Storage
	metrics  *metrics.Metrics
	logger   *slog.Logger
	suffix   string

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithMetrics records job metrics on m.
func WithMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithDefaultSuffix sets the chunk name suffix used when a request has none.
func WithDefaultSuffix(suffix string) ServiceOption {
	return func(s *Service) {
		s.suffix = suffix
	}
}

// WithServiceLogger sets the logger.
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates a new Service.
func NewService(repo Repository, p Pipeline, store storage.Storage, opts ...ServiceOption) *Service {
	s := &Service{
		repo:     repo,
		pipeline: p,
		storage:  store,
		logger:   slog.Default(),
		suffix:   DefaultSuffix,
		cancels:  make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetJob retrieves a job by ID.
func (s *Service) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.FindByID(ctx, id)
}

// ListJobs returns all jobs, oldest first.
func (s *Service) ListJobs(ctx context.Context) ([]*Job, error) {
	return s.repo.List(ctx)
}

// OpenArtifact returns the artifact of a completed job with a reader over
// its content. The caller closes the reader.
func (s *Service) OpenArtifact(ctx context.Context, id string) (Artifact, io.ReadCloser, error) {
	j, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Artifact{}, nil, err
	}
	if j.Status != StatusCompleted {
		return Artifact{}, nil, fmt.Errorf("%w: %s is %s", ErrJobNotCompleted, id, j.Status)
	}
	rc, err := s.storage.LoadTemp(ctx, j.Output.Path)
	if err != nil {
		return Artifact{}, nil, fmt.Errorf("open artifact: %w", err)
	}
	return j.Output, rc, nil
}

// SubmitNormalize starts a loudness normalization job.
func (s *Service) SubmitNormalize(ctx context.Context, in NormalizeInput) (*Job, error) {
	if len(in.Audio) == 0 {
		return nil, ErrMissingInput
	}
	if err := in.Target.Validate(); err != nil {
		return nil, err
	}

	j := New(KindNormalize)
	j.PushToS3 = in.PushToS3

	return s.submit(ctx, j, func(ctx context.Context, progress audio.Progress) (result, error) {
		out, err := s.pipeline.Normalize(ctx, in.Audio, in.Target, progress)
		if err != nil {
			return result{}, err
		}
		return result{fileName: NormalizedFileName, contentType: ContentTypeMP3, data: out}, nil
	})
}

// SubmitCut starts a job that splits a recording into chunks and archives them.
func (s *Service) SubmitCut(ctx context.Context, in CutInput) (*Job, error) {
	source, err := s.resolveSource(ctx, in.SourceJobID, len(in.Audio) > 0, KindNormalize)
	if err != nil {
		return nil, err
	}

	suffix := s.suffixOr(in.Suffix)
	if err := transcript.CheckSuffix(suffix); err != nil {
		return nil, err
	}
	j := New(KindCut)
	j.PushToS3 = in.PushToS3
	j.SourceJobID = in.SourceJobID

	return s.submit(ctx, j, func(ctx context.Context, progress audio.Progress) (result, error) {
		data := in.Audio
		if source != nil {
			stored, err := storage.ReadTemp(ctx, s.storage, source.Output.Path)
			if err != nil {
				return result{}, fmt.Errorf("read source artifact: %w", err)
			}
			data = stored
		}

		entries, err := s.pipeline.Cut(ctx, data, in.Transcript, suffix, progress)
		if err != nil {
			return result{}, err
		}
		packed, err := archive.PackBytes(entries)
		if err != nil {
			return result{}, err
		}
		if s.metrics != nil {
			s.metrics.RecordChunks(len(entries))
		}

		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name
		}
		return result{
			fileName:    "chunks-" + suffix + ".zip",
			contentType: ContentTypeZip,
			data:        packed,
			names:       names,
		}, nil
	})
}

// SubmitJoin starts a job that composes chunks into one track.
func (s *Service) SubmitJoin(ctx context.Context, in JoinInput) (*Job, error) {
	if !in.Mode.IsValid() {
		return nil, fmt.Errorf("%w: %q", audio.ErrInvalidMode, in.Mode)
	}
	source, err := s.resolveSource(ctx, in.SourceJobID, len(in.Files) > 0, KindCut)
	if err != nil {
		return nil, err
	}

	suffix := s.suffixOr(in.Suffix)
	if err := transcript.CheckSuffix(suffix); err != nil {
		return nil, err
	}
	j := New(KindJoin)
	j.PushToS3 = in.PushToS3
	j.SourceJobID = in.SourceJobID

	return s.submit(ctx, j, func(ctx context.Context, progress audio.Progress) (result, error) {
		files := in.Files
		if source != nil {
			packed, err := storage.ReadTemp(ctx, s.storage, source.Output.Path)
			if err != nil {
				return result{}, fmt.Errorf("read source artifact: %w", err)
			}
			if files, err = archive.Unpack(packed); err != nil {
				return result{}, err
			}
		}

		out, err := s.pipeline.Join(ctx, files, in.Mode, progress)
		if err != nil {
			return result{}, err
		}
		return result{
			fileName:    string(in.Mode) + "-" + suffix + ".mp3",
			contentType: ContentTypeMP3,
			data:        out,
		}, nil
	})
}

// SubmitAnki starts a job that pairs a flashcard table with chunk names.
func (s *Service) SubmitAnki(ctx context.Context, in AnkiInput) (*Job, error) {
	source, err := s.resolveSource(ctx, in.SourceJobID, len(in.FileNames) > 0, KindCut)
	if err != nil {
		return nil, err
	}

	names := in.FileNames
	if source != nil {
		names = source.Output.Names
	}

	j := New(KindAnki)
	j.PushToS3 = in.PushToS3
	j.SourceJobID = in.SourceJobID

	return s.submit(ctx, j, func(_ context.Context, progress audio.Progress) (result, error) {
		out, err := s.pipeline.Pair(in.Table, names, progress)
		if err != nil {
			return result{}, err
		}
		return result{fileName: AnkiFileName, contentType: ContentTypeTSV, data: out}, nil
	})
}

// Cancel stops a queued or running job.
func (s *Service) Cancel(ctx context.Context, id string) error {
	if err := s.repo.Update(ctx, id, func(j *Job) error { return j.Cancel() }); err != nil {
		return err
	}

	s.mu.Lock()
	cancel, ok := s.cancels[id]
	s.mu.Unlock()
	if ok {
		cancel()
	}

	s.logger.Info("job cancelled", slog.String("job_id", id))
	return nil
}

// Wait blocks until every submitted job has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Shutdown cancels running jobs and waits for them until ctx is done.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for _, cancel := range s.cancels {
		cancel()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) suffixOr(suffix string) string {
	if suffix == "" {
		return s.suffix
	}
	return suffix
}

// resolveSource returns the completed job named by sourceID. With no
// sourceID it returns nil, and hasInline must then be true.
func (s *Service) resolveSource(ctx context.Context, sourceID string, hasInline bool, kind Kind) (*Job, error) {
	if sourceID == "" {
		if !hasInline {
			return nil, ErrMissingInput
		}
		return nil, nil
	}

	source, err := s.repo.FindByID(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("source job %s: %w", sourceID, err)
	}
	if source.Status != StatusCompleted {
		return nil, fmt.Errorf("source job %s: %w", sourceID, ErrJobNotCompleted)
	}
	if source.Kind != kind {
		return nil, fmt.Errorf("%w: %s is %s, want %s", ErrSourceKind, sourceID, source.Kind, kind)
	}
	return source, nil
}

// submit saves j and runs fn for it in a background goroutine.
func (s *Service) submit(ctx context.Context, j *Job, fn runFunc) (*Job, error) {
	if err := s.repo.Save(ctx, j); err != nil {
		s.logger.Error("failed to save job",
			slog.String("job_id", j.ID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	s.logger.Info("job submitted",
		slog.String("job_id", j.ID),
		slog.String("kind", string(j.Kind)),
		slog.String("source_job_id", j.SourceJobID),
		slog.Bool("push_to_s3", j.PushToS3),
	)
	if s.metrics != nil {
		s.metrics.RecordJobSubmitted(string(j.Kind))
	}

	// Jobs outlive the request that submitted them.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.mu.Lock()
	s.cancels[j.ID] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.cancels, j.ID)
			s.mu.Unlock()
			cancel()
		}()
		s.run(runCtx, j.ID, j.Kind, j.PushToS3, fn)
	}()

	return j.Clone(), nil
}

// run executes fn and records the outcome on the stored job.
func (s *Service) run(ctx context.Context, id string, kind Kind, push bool, fn runFunc) {
	logger := s.logger.With(slog.String("job_id", id), slog.String("kind", string(kind)))
	bg := context.WithoutCancel(ctx)

	if err := s.repo.Update(bg, id, func(j *Job) error { return j.Start() }); err != nil {
		// Cancelled before it started.
		logger.Info("job not started", slog.String("reason", err.Error()))
		return
	}
	if s.metrics != nil {
		s.metrics.RecordJobStarted()
	}
	start := time.Now()

	progress := func(p int) {
		_ = s.repo.Update(bg, id, func(j *Job) error {
			if !j.IsTerminal() {
				j.UpdateProgress(p)
			}
			return nil
		})
	}

	status := StatusCompleted
	artifact, err := s.execute(ctx, id, push, fn, progress)
	switch {
	case err != nil && ctx.Err() != nil:
		status = StatusCancelled
		logger.Info("job stopped", slog.String("error", err.Error()))
		// Already CANCELLED when stopped through Cancel.
		_ = s.repo.Update(bg, id, func(j *Job) error { return j.Cancel() })
	case err != nil:
		status = StatusFailed
		logger.Error("job failed", slog.String("error", err.Error()))
		_ = s.repo.Update(bg, id, func(j *Job) error { return j.Fail(err.Error()) })
	default:
		if uerr := s.repo.Update(bg, id, func(j *Job) error { return j.Complete(artifact) }); uerr != nil {
			// The job was cancelled while its result was being stored.
			status = StatusCancelled
			_ = s.storage.CleanupTemp(bg, []string{artifact.Path})
		} else {
			logger.Info("job completed",
				slog.String("file_name", artifact.FileName),
				slog.Int64("size", artifact.Size),
				slog.String("url", artifact.URL),
			)
		}
	}

	if s.metrics != nil {
		s.metrics.RecordJobFinished(string(kind), string(status), time.Since(start).Seconds())
		if status == StatusCompleted {
			s.metrics.RecordArtifact(string(kind), artifact.Size)
		}
	}
}

// execute runs fn, stores its output and publishes it when push is set.
func (s *Service) execute(ctx context.Context, id string, push bool, fn runFunc, progress audio.Progress) (Artifact, error) {
	res, err := fn(ctx, progress)
	if err != nil {
		return Artifact{}, err
	}
	if err := ctx.Err(); err != nil {
		return Artifact{}, err
	}

	tempPath, err := s.storage.SaveTemp(ctx, res.fileName, bytes.NewReader(res.data))
	if err != nil {
		return Artifact{}, fmt.Errorf("save artifact: %w", err)
	}

	artifact := Artifact{
		FileName:    res.fileName,
		ContentType: res.contentType,
		Path:        tempPath,
		Size:        int64(len(res.data)),
		Names:       res.names,
	}

	if push {
		key := path.Join("jobs", id, res.fileName)
		url, err := s.storage.UploadToS3(ctx, key, res.contentType, bytes.NewReader(res.data))
		if err != nil {
			_ = s.storage.CleanupTemp(context.WithoutCancel(ctx), []string{tempPath})
			return Artifact{}, fmt.Errorf("upload artifact: %w", err)
		}
		artifact.URL = url
	}
	return artifact, nil
}
