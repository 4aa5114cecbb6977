package scheduler

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rohmanhakim/site-archiver/internal/admission"
	"github.com/rohmanhakim/site-archiver/internal/assets"
	"github.com/rohmanhakim/site-archiver/internal/cache"
	"github.com/rohmanhakim/site-archiver/internal/classifier"
	"github.com/rohmanhakim/site-archiver/internal/config"
	"github.com/rohmanhakim/site-archiver/internal/extractor"
	"github.com/rohmanhakim/site-archiver/internal/fetcher"
	"github.com/rohmanhakim/site-archiver/internal/frontier"
	"github.com/rohmanhakim/site-archiver/internal/metadata"
	"github.com/rohmanhakim/site-archiver/internal/pacing"
	"github.com/rohmanhakim/site-archiver/internal/record"
	"github.com/rohmanhakim/site-archiver/internal/robots"
	"github.com/rohmanhakim/site-archiver/internal/scope"
	"github.com/rohmanhakim/site-archiver/pkg/failure"
	"github.com/rohmanhakim/site-archiver/pkg/limiter"
	"github.com/rohmanhakim/site-archiver/pkg/retry"
	"github.com/rohmanhakim/site-archiver/pkg/timeutil"
	"github.com/rohmanhakim/site-archiver/pkg/urlutil"
)

/*
 Scheduler is the sole control-plane authority of the crawl.

 Determinism and admission guarantees:
 - The admission gate is the ONLY component allowed to decide whether
   a URL may enter the crawl frontier, and the scheduler is the only
   caller of the gate and the frontier.
 - All semantic admission checks (limits, depth, duplicates, approval,
   excludes, scope, robots) complete before a URL reaches the frontier.
 - Pipeline stages may detect and classify failure, but must never
   decide retry, continuation, or abortion.

 Metadata emission is observational only and MUST NOT influence
 scheduling, retries, or crawl termination.

 Scheduler Responsibilities:
 - Coordinate the session lifecycle against the cache store
 - Enforce global limits (pages, depth) through the gate
 - Pace requests per host (adaptive delay + robots crawl-delay +
   rate-limit backoff resolve to one pre-fetch wait)
 - Manage graceful shutdown: a cancelled context stops frontier pulls,
   interrupts the in-flight wait or fetch, and fails the session with
   a cancelled reason after flushing the completed record
 - Aggregate crawl statistics; the finalizer fires exactly once
*/

type Scheduler struct {
	cfg          config.Config
	metadataSink Sink

	robot         robots.CachedRobot
	guard         scope.Guard
	crawlFront    *frontier.CrawlFrontier
	gate          *admission.Gate
	htmlFetcher   fetcher.HtmlFetcher
	domExtractor  extractor.DomExtractor
	delayModel    *pacing.AdaptiveDelay
	rateLimiter   *limiter.ConcurrentRateLimiter
	assetResolver assets.LocalResolver
	pageWriter    *pageWriter
	store         *cache.Store
	outputDir     string

	// sleep is ctx-aware; tests replace it to run without wall time.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewScheduler wires the full pipeline for one session. store may be
// nil when the cache is disabled; pages then land as individual
// markdown files under outputDir.
func NewScheduler(
	cfg config.Config,
	metadataSink Sink,
	store *cache.Store,
	outputDir string,
) (*Scheduler, error) {
	seed := cfg.SeedURL()
	guard := scope.NewGuard(scope.NewSeedContext(seed, cfg.AllowedHosts()), cfg)

	crawlFront := frontier.NewCrawlFrontier()
	crawlFront.Init(cfg)

	httpClient := &http.Client{Timeout: cfg.Timeout()}
	htmlFetcher := fetcher.NewHtmlFetcher(metadataSink)
	htmlFetcher.Init(httpClient, cfg.UserAgent())

	domExtractor := extractor.NewDomExtractor(metadataSink)
	domExtractor.SetConfig(cfg)

	rateLimiter := limiter.NewConcurrentRateLimiter()
	rateLimiter.SetBaseDelay(cfg.RequestDelay())
	rateLimiter.SetJitter(cfg.Jitter())
	rateLimiter.SetRandomSeed(cfg.RandomSeed())
	rateLimiter.SetBackoffParam(timeutil.NewBackoffParam(
		cfg.BackoffInitialDuration(),
		cfg.BackoffMultiplier(),
		cfg.BackoffMaxDuration(),
	))

	s := &Scheduler{
		cfg:           cfg,
		metadataSink:  metadataSink,
		robot:         robots.NewCachedRobot(metadataSink),
		guard:         guard,
		crawlFront:    crawlFront,
		htmlFetcher:   htmlFetcher,
		domExtractor:  domExtractor,
		delayModel:    pacing.NewAdaptiveDelay(cfg),
		rateLimiter:   rateLimiter,
		assetResolver: assets.NewLocalResolver(metadataSink, httpClient, cfg.UserAgent()),
		pageWriter:    newPageWriter(cfg, metadataSink),
		store:         store,
		outputDir:     outputDir,
		sleep:         sleepCtx,
	}
	s.robot.Init(cfg.UserAgent())
	s.robot.SetTTL(cfg.RobotsTTL())

	gate, err := admission.NewGate(cfg, guard, &s.robot, crawlFront, metadataSink)
	if err != nil {
		return nil, err
	}
	s.gate = gate

	if path := cfg.ApprovedURLsFile(); path != "" && store != nil {
		preview, loadErr := store.LoadPreview(path)
		if loadErr != nil {
			return nil, loadErr
		}
		gate.SetApprovedURLs(s.canonicalSet(preview.ApprovedURLs))
		gate.SetExcludedURLs(s.canonicalSet(preview.ExcludedURLs))
	}

	return s, nil
}

// SetSleepFunc replaces the pacing sleep. Tests inject a recording
// no-op so crawls run without wall time.
func (s *Scheduler) SetSleepFunc(sleep func(ctx context.Context, d time.Duration) error) {
	s.sleep = sleep
}

// ExecuteCrawling runs a fresh crawl from the configured seed.
func (s *Scheduler) ExecuteCrawling(ctx context.Context) (CrawlingExecution, error) {
	exec := CrawlingExecution{}

	var sess *cache.Session
	if s.store != nil && !s.cfg.DryRun() {
		created, err := s.store.CreateSession(s.cfg.SeedURL(), s.cfg.Digest(), s.cfg.ExcludePatterns())
		if err != nil {
			return exec, err
		}
		sess = created
		exec.SessionID = sess.ID()
	}

	// A zero page budget is a complete, empty archive.
	if s.cfg.MaxPages() == 0 {
		return s.finishEmpty(exec, sess)
	}

	s.submitSeed()
	return s.crawl(ctx, sess, exec, 0)
}

// ExecuteResume continues a previously persisted session. Links from
// the trailing pages are re-offered to the gate; already persisted
// URLs are suppressed through the frontier's seen set.
func (s *Scheduler) ExecuteResume(ctx context.Context, sessionID string) (CrawlingExecution, error) {
	exec := CrawlingExecution{SessionID: sessionID}
	if s.store == nil {
		return exec, fmt.Errorf("resume requires the session cache")
	}

	sess, state, err := s.store.Resume(sessionID)
	if err != nil {
		return exec, err
	}

	pagesScraped := sess.Metadata().PagesScraped
	for _, persisted := range state.PersistedURLs {
		if u, parseErr := url.Parse(persisted); parseErr == nil {
			canonical := urlutil.Canonicalize(*u, s.cfg.TrackingKeySet())
			s.crawlFront.MarkSeen(canonical.String())
		}
	}
	for _, link := range state.RecentLinks {
		u, parseErr := url.Parse(link)
		if parseErr != nil {
			continue
		}
		s.admitDiscovered(*u, 1, "", frontier.SourceResume, pagesScraped)
	}

	return s.crawl(ctx, sess, exec, pagesScraped)
}

func (s *Scheduler) submitSeed() {
	seed := s.cfg.SeedURL()
	decision := s.gate.Admit(admission.NewCandidate(seed, 0, ""), 0)
	if !decision.Admitted {
		return
	}
	s.applyCrawlDelay(seed.Host, decision.CrawlDelay)
	s.crawlFront.Submit(frontier.NewCrawlAdmissionCandidate(
		decision.CanonicalURL,
		frontier.SourceSeed,
		frontier.NewDiscoveryMetadata(0, nil),
	))
}

// crawl drives the frontier until exhaustion, cancellation, or a fatal
// failure. pagesScraped counts records persisted across the whole
// session, including those that survived a resume.
func (s *Scheduler) crawl(
	ctx context.Context,
	sess *cache.Session,
	exec CrawlingExecution,
	pagesScraped int,
) (CrawlingExecution, error) {
	crawlStartTime := time.Now()
	defer func() {
		s.metadataSink.RecordFinalCrawlStats(
			exec.PagesArchived,
			exec.ErrorCount,
			exec.AssetCount,
			time.Since(crawlStartTime),
		)
	}()

	fail := func(reason string) {
		if sess != nil {
			if err := sess.MarkFailed(reason); err != nil {
				sess.Close()
			}
		}
		exec.Status = cache.StatusFailed
		exec.Reason = reason
		exec.Duration = time.Since(crawlStartTime)
	}

	retryParam := s.retryParam()

	for {
		if ctx.Err() != nil {
			fail(ReasonCancelled)
			return exec, nil
		}
		// The gate rejects admissions past the page budget, but tokens
		// already queued before the budget filled must not be fetched.
		if limit := s.cfg.MaxPages(); limit > 0 && pagesScraped >= limit {
			break
		}

		token, ok := s.crawlFront.Dequeue()
		if !ok {
			break
		}
		tokenURL := token.URL()
		host := tokenURL.Host

		// Dry run reports the discovery walk itself: every dequeued
		// admission counts against the page budget and lands in the
		// report whether or not its fetch later succeeds.
		if s.cfg.DryRun() {
			exec.AdmittedURLs = append(exec.AdmittedURLs, tokenURL.String())
			pagesScraped++
		}

		// One pre-fetch wait resolves pacing, robots crawl-delay,
		// jitter and backoff for this host.
		if err := s.sleep(ctx, s.rateLimiter.ResolveDelay(host)); err != nil {
			fail(ReasonCancelled)
			return exec, nil
		}
		s.rateLimiter.MarkLastFetchAsNow(host)

		outcome, fetchErr := s.htmlFetcher.Fetch(ctx, token.Depth(), tokenURL, retryParam)
		if ctx.Err() != nil {
			fail(ReasonCancelled)
			return exec, nil
		}
		if fetchErr != nil {
			if fetchErr.Severity() == failure.SeverityFatal {
				fail(fetchErr.Error())
				return exec, fetchErr
			}
			exec.ErrorCount++
			if outcome.RateLimited() {
				s.rateLimiter.Backoff(host)
				s.rateLimiter.ArmCooldown(host, s.cfg.CooldownPages())
			}
			continue
		}
		s.rateLimiter.ResetBackoff(host)

		// A redirect that lands off the allowed hosts produces no
		// record; the final host decides scope, not the request host.
		finalURL := outcome.FinalURL()
		if finalHost := finalURL.Host; finalHost != "" && !s.guard.Seed().HostAllowed(finalHost) {
			s.metadataSink.RecordDecision(
				"scheduler",
				finalURL.String(),
				"redirect-out-of-scope",
				[]metadata.Attribute{
					metadata.NewAttr(metadata.AttrHost, finalHost),
				},
			)
			continue
		}

		rec, links := s.domExtractor.ExtractPage(
			tokenURL,
			finalURL,
			outcome.Body(),
			extractor.NewExtractParam(s.cfg.IncludeMenus(), s.cfg.MinContentLength(), nil).
				WithRemoveImages(s.cfg.RemoveImages()),
		)

		if !s.cfg.DryRun() {
			assetsDownloaded := s.resolvePageAssets(ctx, &rec, token, retryParam, &exec)
			exec.AssetCount += assetsDownloaded

			archived := true
			if sess != nil {
				if err := sess.AppendPage(rec); err != nil {
					// Cache write failure is fatal to the session.
					fail(err.Error())
					return exec, err
				}
			} else if s.pageWriter != nil {
				result, writeErr := s.pageWriter.write(s.outputDir, tokenURL, rec, token.Depth())
				if writeErr != nil {
					if writeErr.Severity() == failure.SeverityFatal {
						fail(writeErr.Error())
						return exec, writeErr
					}
					// A page the pipeline rejects still spends budget,
					// but only written pages count as archived.
					exec.ErrorCount++
					archived = false
				} else {
					exec.WriteResults = append(exec.WriteResults, result)
				}
			}
			pagesScraped++
			if archived {
				exec.PagesArchived++
			}
		}

		signal := pacing.PageSignal{
			WordCount:    rec.WordCount,
			ContentType:  classifier.ContentType(rec.ContentType),
			Images:       len(rec.Images),
			ResponseTime: outcome.Elapsed(),
			RateLimited:  outcome.RateLimited(),
		}
		s.delayModel.ObservePage(signal)
		s.rateLimiter.SetPacedDelay(host, s.delayModel.NextDelay(signal))
		if pause, take := s.delayModel.SessionBreak(); take {
			if err := s.sleep(ctx, pause); err != nil {
				fail(ReasonCancelled)
				return exec, nil
			}
		}

		for _, link := range links {
			s.admitDiscovered(link, token.Depth()+1, tokenURL.String(), frontier.SourceCrawl, pagesScraped)
		}
	}

	if sess != nil {
		if err := sess.MarkComplete(); err != nil {
			exec.Status = cache.StatusFailed
			exec.Reason = err.Error()
			exec.Duration = time.Since(crawlStartTime)
			return exec, err
		}
	}
	exec.Status = cache.StatusCompleted
	exec.Duration = time.Since(crawlStartTime)
	return exec, nil
}

// admitDiscovered offers one discovered URL to the gate and, when
// admitted, enqueues its canonical form with a classification-derived
// priority so documentation links overtake navigation links.
func (s *Scheduler) admitDiscovered(
	link url.URL,
	depth int,
	referrer string,
	source frontier.SourceContext,
	pagesScraped int,
) {
	decision := s.gate.Admit(admission.NewCandidate(link, depth, referrer), pagesScraped)
	if !decision.Admitted {
		return
	}
	s.applyCrawlDelay(link.Host, decision.CrawlDelay)

	priority := classifier.Classify(decision.CanonicalURL, classifier.PageStructure{}).Priority()
	s.crawlFront.Submit(frontier.NewCrawlAdmissionCandidate(
		decision.CanonicalURL,
		source,
		frontier.NewDiscoveryMetadata(depth, decision.CrawlDelay),
	).WithPriority(priority).WithReferrer(referrer))
}

// resolvePageAssets downloads the page's images and stamps their local
// paths onto the record. Failures leave local_path empty; nothing here
// is fatal.
func (s *Scheduler) resolvePageAssets(
	ctx context.Context,
	rec *record.PageRecord,
	token frontier.CrawlToken,
	retryParam retry.RetryParam,
	exec *CrawlingExecution,
) int {
	if !s.cfg.IncludeImages() || len(rec.Images) == 0 {
		return 0
	}

	conversion, ok := s.pageWriter.convert(*rec)
	if !ok {
		return 0
	}

	pageURL := token.URL()
	assetful, err := s.assetResolver.Resolve(
		ctx,
		pageURL,
		pageURL.Host,
		pageURL.Scheme,
		conversion,
		assets.NewResolveParam(s.outputDir, s.cfg.MaxImageSize()),
		retryParam,
	)
	if err != nil {
		exec.ErrorCount++
		return 0
	}

	for i := range rec.Images {
		if local := s.assetResolver.LocalPathFor(rec.Images[i].Src, pageURL.Host, pageURL.Scheme); local != "" {
			rec.Images[i].LocalPath = local
		}
	}
	return len(assetful.LocalAssets())
}

func (s *Scheduler) applyCrawlDelay(host string, crawlDelay *time.Duration) {
	if crawlDelay != nil && *crawlDelay > 0 {
		s.rateLimiter.SetCrawlDelay(host, *crawlDelay)
	}
}

func (s *Scheduler) finishEmpty(exec CrawlingExecution, sess *cache.Session) (CrawlingExecution, error) {
	if sess != nil {
		if err := sess.MarkComplete(); err != nil {
			return exec, err
		}
	}
	exec.Status = cache.StatusCompleted
	s.metadataSink.RecordFinalCrawlStats(0, 0, 0, 0)
	return exec, nil
}

func (s *Scheduler) retryParam() retry.RetryParam {
	return retry.NewRetryParam(
		s.cfg.RequestDelay(),
		s.cfg.Jitter(),
		s.cfg.RandomSeed(),
		s.cfg.MaxAttempt(),
		timeutil.NewBackoffParam(
			s.cfg.BackoffInitialDuration(),
			s.cfg.BackoffMultiplier(),
			s.cfg.BackoffMaxDuration(),
		),
	)
}

func (s *Scheduler) canonicalSet(rawURLs []string) map[string]struct{} {
	set := make(map[string]struct{}, len(rawURLs))
	keys := s.cfg.TrackingKeySet()
	for _, raw := range rawURLs {
		u, err := url.Parse(strings.TrimSpace(raw))
		if err != nil || u.Host == "" {
			continue
		}
		canonical := urlutil.Canonicalize(*u, keys)
		set[canonical.String()] = struct{}{}
	}
	return set
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
