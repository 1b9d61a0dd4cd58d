// Package platformtest provides an in-memory platform.Platform that records
// every call, for tests of the collector, reconciler and engine.
package platformtest

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/agentstation/automator/pkg/errors"
	"github.com/agentstation/automator/pkg/platform"
)

// Branch is the fake state of one branch.
type Branch struct {
	Sha   string
	Files map[string]string // path -> raw content
}

// RepoState is the fake state of one repository.
type RepoState struct {
	DefaultBranch string
	Branches      map[string]*Branch
	Tags          []platform.Ref
	// Compare maps "base...head" to the commits returned for that range.
	Compare   map[string][]platform.Commit
	Pulls     []platform.PullRequest
	Closed    []int
	Labels    map[int][]string
	Comments  map[int][]string
	AutoMerge map[int]platform.MergeMethod
}

// Call is one recorded platform call.
type Call struct {
	Method string
	Repo   string
	Args   []string
}

// readOnly lists the methods that never mutate platform state.
var readOnly = map[string]bool{
	"GetRef":           true,
	"ListMatchingRefs": true,
	"CompareCommits":   true,
	"GetDefaultBranch": true,
	"ListBranches":     true,
	"GetFileContent":   true,
	"ListOpenPulls":    true,
}

// Fake is an in-memory platform. The zero value is not usable; use New.
type Fake struct {
	mu     sync.Mutex
	repos  map[string]*RepoState
	calls  []Call
	nextPR int
	clock  time.Time

	// FailOn makes the named method return the error.
	FailOn map[string]error
}

var _ platform.Platform = (*Fake)(nil)

// New creates an empty fake.
func New() *Fake {
	return &Fake{
		repos:  make(map[string]*RepoState),
		nextPR: 1,
		clock:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		FailOn: make(map[string]error),
	}
}

// Repo returns the state for a repository, creating it with the given default branch.
func (f *Fake) Repo(name, defaultBranch string) *RepoState {
	f.mu.Lock()
	defer f.mu.Unlock()
	state, ok := f.repos[name]
	if !ok {
		state = &RepoState{
			DefaultBranch: defaultBranch,
			Branches:      make(map[string]*Branch),
			Compare:       make(map[string][]platform.Commit),
			Labels:        make(map[int][]string),
			Comments:      make(map[int][]string),
			AutoMerge:     make(map[int]platform.MergeMethod),
		}
		f.repos[name] = state
	}
	return state
}

// SetBranch creates or replaces a branch with the given files.
func (s *RepoState) SetBranch(name, sha string, files map[string]string) {
	copied := make(map[string]string, len(files))
	for k, v := range files {
		copied[k] = v
	}
	s.Branches[name] = &Branch{Sha: sha, Files: copied}
}

// AddTag adds a tag pointing at sha.
func (s *RepoState) AddTag(name, sha string) {
	s.Tags = append(s.Tags, platform.Ref{Ref: "refs/tags/" + name, Sha: sha})
}

// AddPull registers an already open pull request; its head branch is created
// from the default branch when missing.
func (f *Fake) AddPull(repo string, pull platform.PullRequest) {
	state := f.Repo(repo, "main")
	f.mu.Lock()
	defer f.mu.Unlock()
	if pull.Number == 0 {
		pull.Number = f.nextPR
	}
	if pull.Number >= f.nextPR {
		f.nextPR = pull.Number + 1
	}
	if pull.BaseRef == "" {
		pull.BaseRef = state.DefaultBranch
	}
	if _, ok := state.Branches[pull.HeadRef]; !ok {
		if base, ok := state.Branches[pull.BaseRef]; ok {
			state.SetBranch(pull.HeadRef, base.Sha, base.Files)
		} else {
			state.SetBranch(pull.HeadRef, "sha-"+pull.HeadRef, nil)
		}
	}
	state.Pulls = append(state.Pulls, pull)
}

// Calls returns a copy of the recorded calls.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallCount counts recorded calls of one method.
func (f *Fake) CallCount(method string) int {
	n := 0
	for _, c := range f.Calls() {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Writes returns the recorded calls that mutate platform state.
func (f *Fake) Writes() []Call {
	var writes []Call
	for _, c := range f.Calls() {
		if !readOnly[c.Method] {
			writes = append(writes, c)
		}
	}
	return writes
}

// ResetCalls clears the call log.
func (f *Fake) ResetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

// File returns the raw content of a file on a branch.
func (f *Fake) File(repo, branch, path string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	state, ok := f.repos[repo]
	if !ok {
		return "", false
	}
	b, ok := state.Branches[branch]
	if !ok {
		return "", false
	}
	content, ok := b.Files[path]
	return content, ok
}

// record logs a call and returns the injected failure, if any.
func (f *Fake) record(method string, repo platform.Repo, args ...string) error {
	f.calls = append(f.calls, Call{Method: method, Repo: repo.String(), Args: args})
	return f.FailOn[method]
}

func (f *Fake) state(repo platform.Repo) (*RepoState, error) {
	state, ok := f.repos[repo.String()]
	if !ok {
		return nil, notFound("repository " + repo.String())
	}
	return state, nil
}

func notFound(what string) error {
	return &errors.APIError{Platform: "fake", StatusCode: http.StatusNotFound, Message: what + " not found"}
}

func (f *Fake) tick() time.Time {
	f.clock = f.clock.Add(time.Minute)
	return f.clock
}

// BlobSha returns the fake blob identity of content.
func BlobSha(content string) string {
	sum := sha1.Sum([]byte(content))
	return hex.EncodeToString(sum[:])
}

// encodeWrapped encodes like the GitHub contents API: base64 wrapped at 60 columns.
func encodeWrapped(content string) string {
	encoded := base64.StdEncoding.EncodeToString([]byte(content))
	var sb strings.Builder
	for len(encoded) > 60 {
		sb.WriteString(encoded[:60])
		sb.WriteByte('\n')
		encoded = encoded[60:]
	}
	sb.WriteString(encoded)
	sb.WriteByte('\n')
	return sb.String()
}

// GetRef implements platform.SourceReader.
func (f *Fake) GetRef(_ context.Context, repo platform.Repo, ref string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("GetRef", repo, ref); err != nil {
		return "", err
	}
	state, err := f.state(repo)
	if err != nil {
		return "", err
	}
	if name, ok := strings.CutPrefix(ref, "heads/"); ok {
		if b, ok := state.Branches[name]; ok {
			return b.Sha, nil
		}
	}
	for _, tag := range state.Tags {
		if tag.Ref == "refs/"+ref {
			return tag.Sha, nil
		}
	}
	return "", notFound("ref " + ref)
}

// ListMatchingRefs implements platform.SourceReader.
func (f *Fake) ListMatchingRefs(_ context.Context, repo platform.Repo, prefix string) ([]platform.Ref, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ListMatchingRefs", repo, prefix); err != nil {
		return nil, err
	}
	state, err := f.state(repo)
	if err != nil {
		return nil, err
	}
	var refs []platform.Ref
	for _, tag := range state.Tags {
		if strings.HasPrefix(tag.Ref, "refs/"+prefix) {
			refs = append(refs, tag)
		}
	}
	return refs, nil
}

// CompareCommits implements platform.SourceReader.
func (f *Fake) CompareCommits(_ context.Context, repo platform.Repo, base, head string) ([]platform.Commit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CompareCommits", repo, base, head); err != nil {
		return nil, err
	}
	state, err := f.state(repo)
	if err != nil {
		return nil, err
	}
	return append([]platform.Commit(nil), state.Compare[base+"..."+head]...), nil
}

// GetDefaultBranch implements platform.Platform.
func (f *Fake) GetDefaultBranch(_ context.Context, repo platform.Repo) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("GetDefaultBranch", repo); err != nil {
		return "", err
	}
	state, err := f.state(repo)
	if err != nil {
		return "", err
	}
	return state.DefaultBranch, nil
}

// CreateBranch implements platform.Platform. Files are copied from the branch
// whose head is sha.
func (f *Fake) CreateBranch(_ context.Context, repo platform.Repo, name, sha string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateBranch", repo, name, sha); err != nil {
		return err
	}
	state, err := f.state(repo)
	if err != nil {
		return err
	}
	if _, exists := state.Branches[name]; exists {
		return &errors.APIError{Platform: "fake", StatusCode: http.StatusUnprocessableEntity, Message: "Reference already exists"}
	}
	var files map[string]string
	for _, b := range state.Branches {
		if b.Sha == sha {
			files = b.Files
			break
		}
	}
	state.SetBranch(name, sha, files)
	return nil
}

// ListBranches implements platform.Platform.
func (f *Fake) ListBranches(_ context.Context, repo platform.Repo) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ListBranches", repo); err != nil {
		return nil, err
	}
	state, err := f.state(repo)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(state.Branches))
	for name := range state.Branches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// DeleteBranch implements platform.Platform.
func (f *Fake) DeleteBranch(_ context.Context, repo platform.Repo, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DeleteBranch", repo, name); err != nil {
		return err
	}
	state, err := f.state(repo)
	if err != nil {
		return err
	}
	if _, ok := state.Branches[name]; !ok {
		return notFound("branch " + name)
	}
	delete(state.Branches, name)
	return nil
}

// MergeBranches implements platform.Platform: files of head missing from base are copied.
func (f *Fake) MergeBranches(_ context.Context, repo platform.Repo, base, head, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("MergeBranches", repo, base, head); err != nil {
		return err
	}
	state, err := f.state(repo)
	if err != nil {
		return err
	}
	into, ok := state.Branches[base]
	if !ok {
		return notFound("branch " + base)
	}
	from, ok := state.Branches[head]
	if !ok {
		return notFound("branch " + head)
	}
	for path, content := range from.Files {
		if _, exists := into.Files[path]; !exists {
			into.Files[path] = content
		}
	}
	delete(state.Compare, base+"..."+head)
	into.Sha = fmt.Sprintf("merge-%s", f.tick().Format("150405"))
	return nil
}

// GetFileContent implements platform.Platform.
func (f *Fake) GetFileContent(_ context.Context, repo platform.Repo, path, ref string) (*platform.FileContent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("GetFileContent", repo, path, ref); err != nil {
		return nil, err
	}
	state, err := f.state(repo)
	if err != nil {
		return nil, err
	}
	b, ok := state.Branches[ref]
	if !ok {
		return nil, notFound("ref " + ref)
	}
	content, ok := b.Files[path]
	if !ok {
		return nil, notFound("file " + path)
	}
	return &platform.FileContent{Path: path, Sha: BlobSha(content), Content: encodeWrapped(content)}, nil
}

// PutFileContent implements platform.Platform. A stale blob sha is a conflict.
func (f *Fake) PutFileContent(_ context.Context, repo platform.Repo, update platform.FileUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("PutFileContent", repo, update.Path, update.Branch); err != nil {
		return err
	}
	state, err := f.state(repo)
	if err != nil {
		return err
	}
	b, ok := state.Branches[update.Branch]
	if !ok {
		return notFound("branch " + update.Branch)
	}
	if current, exists := b.Files[update.Path]; exists && BlobSha(current) != update.Sha {
		return &errors.APIError{Platform: "fake", StatusCode: http.StatusConflict, Message: "sha does not match"}
	}
	decoded, err := base64.StdEncoding.DecodeString(update.Content)
	if err != nil {
		return err
	}
	b.Files[update.Path] = string(decoded)
	b.Sha = "commit-" + BlobSha(update.Branch + string(decoded))
	return nil
}

// ListOpenPulls implements platform.Platform.
func (f *Fake) ListOpenPulls(_ context.Context, repo platform.Repo, headPrefix string) ([]platform.PullRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ListOpenPulls", repo, headPrefix); err != nil {
		return nil, err
	}
	state, err := f.state(repo)
	if err != nil {
		return nil, err
	}
	var pulls []platform.PullRequest
	for _, p := range state.Pulls {
		if strings.HasPrefix(p.HeadRef, headPrefix) {
			pulls = append(pulls, p)
		}
	}
	return pulls, nil
}

// CreatePull implements platform.Platform.
func (f *Fake) CreatePull(_ context.Context, repo platform.Repo, pull platform.NewPullRequest) (*platform.PullRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreatePull", repo, pull.Head, pull.Base); err != nil {
		return nil, err
	}
	state, err := f.state(repo)
	if err != nil {
		return nil, err
	}
	if _, ok := state.Branches[pull.Head]; !ok {
		return nil, &errors.APIError{Platform: "fake", StatusCode: http.StatusUnprocessableEntity, Message: "head branch missing"}
	}
	number := f.nextPR
	f.nextPR++
	created := platform.PullRequest{
		ID:        int64(1000 + number),
		NodeID:    fmt.Sprintf("PR_node%d", number),
		Number:    number,
		URL:       fmt.Sprintf("https://github.com/%s/pull/%d", repo, number),
		Title:     pull.Title,
		Body:      pull.Body,
		HeadRef:   pull.Head,
		BaseRef:   pull.Base,
		CreatedAt: f.tick(),
	}
	state.Pulls = append(state.Pulls, created)
	return &created, nil
}

// UpdatePullBody implements platform.Platform.
func (f *Fake) UpdatePullBody(_ context.Context, repo platform.Repo, number int, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("UpdatePullBody", repo, fmt.Sprint(number)); err != nil {
		return err
	}
	state, err := f.state(repo)
	if err != nil {
		return err
	}
	for i := range state.Pulls {
		if state.Pulls[i].Number == number {
			state.Pulls[i].Body = body
			return nil
		}
	}
	return notFound(fmt.Sprintf("pull %d", number))
}

// ClosePull implements platform.Platform.
func (f *Fake) ClosePull(_ context.Context, repo platform.Repo, number int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ClosePull", repo, fmt.Sprint(number)); err != nil {
		return err
	}
	state, err := f.state(repo)
	if err != nil {
		return err
	}
	for i, p := range state.Pulls {
		if p.Number == number {
			state.Pulls = append(state.Pulls[:i], state.Pulls[i+1:]...)
			state.Closed = append(state.Closed, number)
			return nil
		}
	}
	return notFound(fmt.Sprintf("pull %d", number))
}

// AddLabels implements platform.Platform.
func (f *Fake) AddLabels(_ context.Context, repo platform.Repo, number int, labels []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("AddLabels", repo, append([]string{fmt.Sprint(number)}, labels...)...); err != nil {
		return err
	}
	state, err := f.state(repo)
	if err != nil {
		return err
	}
	state.Labels[number] = append(state.Labels[number], labels...)
	return nil
}

// CreateComment implements platform.Platform.
func (f *Fake) CreateComment(_ context.Context, repo platform.Repo, number int, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateComment", repo, fmt.Sprint(number)); err != nil {
		return err
	}
	state, err := f.state(repo)
	if err != nil {
		return err
	}
	state.Comments[number] = append(state.Comments[number], body)
	return nil
}

// EnableAutoMerge implements platform.Platform.
func (f *Fake) EnableAutoMerge(_ context.Context, repo platform.Repo, pull platform.PullRequest, method platform.MergeMethod) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("EnableAutoMerge", repo, fmt.Sprint(pull.Number), string(method)); err != nil {
		return err
	}
	state, err := f.state(repo)
	if err != nil {
		return err
	}
	state.AutoMerge[pull.Number] = method
	return nil
}
