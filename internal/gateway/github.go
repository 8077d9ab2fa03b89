// Package gateway provides a gateway to the GitHub API,
// abstracting away the underlying REST and GraphQL clients.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v62/github"
	"github.com/shurcooL/githubv4"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"

	"github.com/naka-gawa/commit-board/internal/config"
	"github.com/naka-gawa/commit-board/internal/domain"
	"github.com/naka-gawa/commit-board/internal/metrics"
)

// repoPageSize is the page size used when listing organization repositories.
const repoPageSize = 100

// Fetcher defines the behavior of a gateway for fetching information from GitHub.
type Fetcher interface {
	// ListRepositories returns every repository of org in listing order.
	ListRepositories(ctx context.Context, org string) ([]domain.Repository, error)
	// CountCommits returns the commit count of the default branch. It never
	// fails; repositories whose count cannot be determined report 0.
	CountCommits(ctx context.Context, org, repo string) int
}

// GitHubGateway is the concrete implementation of the Fetcher interface.
type GitHubGateway struct {
	restClient    *github.Client
	graphqlClient *githubv4.Client
	counter       string
	logger        *zap.Logger
}

// commitHistoryQuery asks for the total commit count of the default branch.
type commitHistoryQuery struct {
	Repository struct {
		DefaultBranchRef *struct {
			Target struct {
				Commit struct {
					History struct {
						TotalCount int
					}
				} `graphql:"... on Commit"`
			}
		}
	} `graphql:"repository(owner: $owner, name: $name)"`
}

// NewGitHubGateway is a constructor that creates a new instance of GitHubGateway.
func NewGitHubGateway(cfg config.GitHubConfig, logger *zap.Logger) (Fetcher, error) {
	rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(nil,
		github_ratelimit.WithSingleSleepLimit(cfg.RequestTimeout, func(*github_ratelimit.CallbackContext) {
			logger.Warn("Secondary rate limit wait exceeds request timeout, giving up",
				zap.Duration("limit", cfg.RequestTimeout))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	httpClient := &http.Client{
		Timeout: cfg.RequestTimeout,
		Transport: &userAgentTransport{
			agent: cfg.UserAgent,
			base: &oauth2.Transport{
				Base:   rateLimitWaiter,
				Source: ts,
			},
		},
	}

	restClient := github.NewClient(httpClient)
	restClient.UserAgent = cfg.UserAgent
	graphqlClient := githubv4.NewClient(httpClient)

	if cfg.APIURL != "" {
		baseURL, err := url.Parse(strings.TrimSuffix(cfg.APIURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid github.api_url: %w", err)
		}
		restClient.BaseURL = baseURL
		graphqlClient = githubv4.NewEnterpriseClient(baseURL.String()+"graphql", httpClient)
	}

	return &GitHubGateway{
		restClient:    restClient,
		graphqlClient: graphqlClient,
		counter:       cfg.Counter,
		logger:        logger,
	}, nil
}

// ListRepositories pages through the organization's repositories until a
// short or empty page is returned. Any failed page aborts the listing.
func (g *GitHubGateway) ListRepositories(ctx context.Context, org string) ([]domain.Repository, error) {
	opts := &github.RepositoryListByOrgOptions{
		Type:        "all",
		ListOptions: github.ListOptions{PerPage: repoPageSize, Page: 1},
	}
	repos := make([]domain.Repository, 0)
	for {
		batch, resp, err := g.restClient.Repositories.ListByOrg(ctx, org, opts)
		metrics.RecordUpstream("repos", statusOf(resp))
		if err != nil {
			return nil, fmt.Errorf("failed to list repositories of %s (page %d): %w", org, opts.Page, err)
		}
		for _, repo := range batch {
			repos = append(repos, domain.Repository{
				Name:     repo.GetName(),
				FullName: repo.GetFullName(),
			})
		}
		if len(batch) < repoPageSize {
			break
		}
		opts.Page++
		g.logger.Debug("Fetching next page of repositories...", zap.Int("page", opts.Page))
	}
	return repos, nil
}

// CountCommits dispatches to the configured counting strategy.
func (g *GitHubGateway) CountCommits(ctx context.Context, org, repo string) int {
	if g.counter == config.CounterGraphQL {
		return g.countCommitsGraphQL(ctx, org, repo)
	}
	return g.countCommitsREST(ctx, org, repo)
}

// countCommitsREST requests a single commit per page; the page number of the
// "last" link is then the total number of commits.
func (g *GitHubGateway) countCommitsREST(ctx context.Context, org, repo string) int {
	opts := &github.CommitsListOptions{
		SHA:         "HEAD",
		ListOptions: github.ListOptions{PerPage: 1},
	}
	commits, resp, err := g.restClient.Repositories.ListCommits(ctx, org, repo, opts)
	status := statusOf(resp)
	metrics.RecordUpstream("commits", status)
	if err != nil {
		// Empty or inaccessible repository.
		if status == http.StatusNotFound || status == http.StatusConflict {
			return 0
		}
		g.logger.Warn("Could not count commits, skipping",
			zap.String("repo", repo),
			zap.Int("status", status),
			zap.Error(err))
		return 0
	}

	if resp.Header.Get("Link") == "" {
		return len(commits)
	}
	if resp.LastPage > 0 {
		return resp.LastPage
	}
	return 1
}

func (g *GitHubGateway) countCommitsGraphQL(ctx context.Context, org, repo string) int {
	var q commitHistoryQuery
	variables := map[string]interface{}{
		"owner": githubv4.String(org),
		"name":  githubv4.String(repo),
	}
	if err := g.graphqlClient.Query(ctx, &q, variables); err != nil {
		metrics.RecordUpstream("graphql", 0)
		g.logger.Warn("Could not count commits, skipping",
			zap.String("repo", repo),
			zap.Error(err))
		return 0
	}
	metrics.RecordUpstream("graphql", http.StatusOK)
	if q.Repository.DefaultBranchRef == nil {
		return 0
	}
	return q.Repository.DefaultBranchRef.Target.Commit.History.TotalCount
}

func statusOf(resp *github.Response) int {
	if resp == nil || resp.Response == nil {
		return 0
	}
	return resp.StatusCode
}

// userAgentTransport sets the identifying client header on every request,
// including the GraphQL ones that go-github does not decorate.
type userAgentTransport struct {
	agent string
	base  http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.agent == "" {
		return t.base.RoundTrip(req)
	}
	r := req.Clone(req.Context())
	r.Header.Set("User-Agent", t.agent)
	return t.base.RoundTrip(r)
}
