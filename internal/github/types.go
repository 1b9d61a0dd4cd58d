package github

import (
	"strings"
	"time"

	"github.com/agentstation/automator/pkg/platform"
)

// Wire formats of the REST API, limited to the fields the engine reads.

type gitRef struct {
	Ref    string `json:"ref"`
	Object struct {
		Sha string `json:"sha"`
	} `json:"object"`
}

type repository struct {
	DefaultBranch string `json:"default_branch"`
}

type branch struct {
	Name string `json:"name"`
}

type user struct {
	Login string `json:"login"`
}

type commit struct {
	Sha     string `json:"sha"`
	HTMLURL string `json:"html_url"`
	Commit  struct {
		Message string `json:"message"`
		Author  struct {
			Name  string    `json:"name"`
			Email string    `json:"email"`
			Date  time.Time `json:"date"`
		} `json:"author"`
	} `json:"commit"`
	Author  *user `json:"author"`
	Parents []struct {
		Sha string `json:"sha"`
	} `json:"parents"`
}

func (c commit) toPlatform() platform.Commit {
	pc := platform.Commit{
		Sha:         c.Sha,
		Message:     c.Commit.Message,
		AuthorName:  c.Commit.Author.Name,
		AuthorDate:  c.Commit.Author.Date,
		ParentCount: len(c.Parents),
		HTMLURL:     c.HTMLURL,
	}
	if c.Author != nil {
		pc.AuthorLogin = c.Author.Login
	}
	return pc
}

type comparison struct {
	TotalCommits int      `json:"total_commits"`
	Commits      []commit `json:"commits"`
}

type content struct {
	Type     string `json:"type"`
	Path     string `json:"path"`
	Sha      string `json:"sha"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

type identity struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type contentUpdate struct {
	Message   string    `json:"message"`
	Content   string    `json:"content"`
	Branch    string    `json:"branch"`
	Sha       string    `json:"sha,omitempty"`
	Author    *identity `json:"author,omitempty"`
	Committer *identity `json:"committer,omitempty"`
}

type pullRef struct {
	Ref  string    `json:"ref"`
	Repo *pullRepo `json:"repo"`
}

// pullRepo is null when the head repository of a fork was deleted.
type pullRepo struct {
	FullName string `json:"full_name"`
}

type pull struct {
	ID        int64     `json:"id"`
	NodeID    string    `json:"node_id"`
	Number    int       `json:"number"`
	HTMLURL   string    `json:"html_url"`
	Title     string    `json:"title"`
	Body      *string   `json:"body"`
	Head      pullRef   `json:"head"`
	Base      pullRef   `json:"base"`
	CreatedAt time.Time `json:"created_at"`
}

// fromRepo reports whether the head branch lives in repo rather than a fork.
func (p pull) fromRepo(repo platform.Repo) bool {
	return p.Head.Repo != nil && strings.EqualFold(p.Head.Repo.FullName, repo.String())
}

func (p pull) toPlatform() platform.PullRequest {
	pr := platform.PullRequest{
		ID:        p.ID,
		NodeID:    p.NodeID,
		Number:    p.Number,
		URL:       p.HTMLURL,
		Title:     p.Title,
		HeadRef:   p.Head.Ref,
		BaseRef:   p.Base.Ref,
		CreatedAt: p.CreatedAt,
	}
	if p.Body != nil {
		pr.Body = *p.Body
	}
	return pr
}
