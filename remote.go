package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/tidwall/gjson"
)

const (
	protoGithub = "github://"
	protoGitlab = "gitlab://"
	protoHTTPS  = "https://"

	hostGithub = "github.com"
	hostGitlab = "gitlab.com"
)

var (
	githubAPI = "https://api.github.com"
	gitlabAPI = "https://gitlab.com/api/v4"

	httpClient = &http.Client{Timeout: 15 * time.Second}
)

// repository identifies a hosted repository whose README can be fetched.
type repository struct {
	host  string
	owner string
	name  string
}

// repositoryFromArg recognizes github://owner/repo, gitlab://owner/repo and
// https URLs pointing into a GitHub or GitLab repository.
func repositoryFromArg(arg string) (repository, bool) {
	var host, path string
	switch {
	case strings.HasPrefix(arg, protoGithub):
		host, path = hostGithub, strings.TrimPrefix(arg, protoGithub)
	case strings.HasPrefix(arg, protoGitlab):
		host, path = hostGitlab, strings.TrimPrefix(arg, protoGitlab)
	default:
		if !strings.Contains(arg, "://") {
			if !strings.HasPrefix(arg, hostGithub+"/") && !strings.HasPrefix(arg, hostGitlab+"/") {
				return repository{}, false
			}
			arg = protoHTTPS + arg
		}
		u, err := url.ParseRequestURI(arg)
		if err != nil || u.Scheme != "https" {
			return repository{}, false
		}
		host, path = strings.ToLower(u.Hostname()), u.Path
		if host != hostGithub && host != hostGitlab {
			return repository{}, false
		}
	}

	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return repository{}, false
	}
	return repository{
		host:  host,
		owner: parts[0],
		name:  strings.TrimSuffix(parts[1], ".git"),
	}, true
}

func (r repository) String() string {
	return r.host + "/" + r.owner + "/" + r.name
}

// readmeSource looks up the repository's README through the host's API and
// opens it for reading.
func readmeSource(ctx context.Context, r repository) (*source, error) {
	var (
		apiURL string
		field  string
	)
	switch r.host {
	case hostGithub:
		apiURL = fmt.Sprintf("%s/repos/%s/%s/readme", githubAPI, r.owner, r.name)
		field = "download_url"
	case hostGitlab:
		apiURL = fmt.Sprintf("%s/projects/%s", gitlabAPI, url.PathEscape(r.owner+"/"+r.name))
		field = "readme_url"
	default:
		return nil, fmt.Errorf("unsupported host: %s", r.host)
	}

	body, err := httpGet(ctx, apiURL)
	if err != nil {
		return nil, err
	}
	defer body.Close() //nolint:errcheck
	meta, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("unable to read http response body: %w", err)
	}

	readme := gjson.GetBytes(meta, field).String()
	if readme == "" {
		return nil, fmt.Errorf("can't find README in %s", r)
	}
	if r.host == hostGitlab {
		readme = strings.Replace(readme, "/blob/", "/raw/", 1)
	}

	log.Debug("Fetching README", "repository", r.String(), "url", readme)
	rc, err := httpGet(ctx, readme)
	if err != nil {
		return nil, err
	}
	return &source{reader: rc, path: readme}, nil
}

// httpGet returns the body of a successful GET request. The caller closes it.
func httpGet(ctx context.Context, u string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to create request: %w", err)
	}
	res, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to get url: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		_ = res.Body.Close()
		return nil, fmt.Errorf("unable to get %s: %s", u, res.Status)
	}
	return res.Body, nil
}
