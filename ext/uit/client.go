package uit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/odpf/salt/log"
	"github.com/spf13/afero"

	"github.com/odpf/hpcjob/core/job"
	"github.com/odpf/hpcjob/core/job/service"
	"github.com/odpf/hpcjob/internal/errors"
)

const (
	EntityUIT = "uit"

	authHeader = "x-uit-auth-token"

	userInfoEndpoint = "uapi/userinfo"
	execEndpoint     = "exec"
	putFileEndpoint  = "putfile"
	getFileEndpoint  = "getfile"
	listDirEndpoint  = "listdirectory"

	dpRouteError   = "DP Route"
	unknownJobID   = "Unknown Job Id"
	successfulCall = "true"
)

var _ service.RemoteClient = (*Client)(nil)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type uitRequest struct {
	endpoint string
	method   string
	body     io.Reader
	header   map[string]string
}

type userInfoResponse struct {
	UserInfo struct {
		Username string                `json:"USERNAME"`
		Systems  map[string]systemInfo `json:"SYSTEMS"`
	} `json:"userinfo"`
}

type systemInfo struct {
	LoginNodes []struct {
		Hostname string            `json:"HOSTNAME"`
		URLs     map[string]string `json:"URLS"`
	} `json:"LOGIN_NODES"`
}

type execResponse struct {
	Success string `json:"success"`
	Stdout  string `json:"stdout"`
	Stderr  string `json:"stderr"`
	Error   string `json:"error"`
}

type listDirResponse struct {
	Success string `json:"success"`
	Error   string `json:"error"`
	Files   []struct {
		Name string `json:"name"`
	} `json:"files"`
}

// Client talks to one HPC system through the UIT+ API. It is not safe for use by
// more than one job controller at a time.
type Client struct {
	l      log.Logger
	client HTTPClient
	fs     afero.Fs

	host   string
	system string

	mu      sync.RWMutex
	token   string
	nodeURL string
}

func NewClient(l log.Logger, client HTTPClient, fs afero.Fs, host, system string) *Client {
	return &Client{
		l:      l,
		client: client,
		fs:     fs,
		host:   strings.TrimSuffix(host, "/"),
		system: system,
	}
}

// Connect looks up the login node of the system for the token's user.
func (c *Client) Connect(ctx context.Context, token string) error {
	body, err := c.invoke(ctx, c.host, token, uitRequest{endpoint: userInfoEndpoint, method: http.MethodGet})
	if err != nil {
		return err
	}

	var info userInfoResponse
	if err := json.Unmarshal(body, &info); err != nil {
		return errors.RemoteUnavailable(EntityUIT, "unable to read user info", err)
	}
	system, ok := info.UserInfo.Systems[strings.ToUpper(c.system)]
	if !ok || len(system.LoginNodes) == 0 {
		return errors.RemoteUnavailable(EntityUIT, fmt.Sprintf("user %s has no access to %s", info.UserInfo.Username, c.system), nil)
	}
	nodeURL := system.LoginNodes[0].URLs["UIT+"]
	if nodeURL == "" {
		return errors.RemoteUnavailable(EntityUIT, fmt.Sprintf("no login node url for %s", c.system), nil)
	}

	c.mu.Lock()
	c.token, c.nodeURL = token, strings.TrimSuffix(nodeURL, "/")
	c.mu.Unlock()
	c.l.Debug("connected to login node", "system", c.system, "node", system.LoginNodes[0].Hostname)
	return nil
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token != "" && c.nodeURL != ""
}

func (c *Client) Close() error {
	c.mu.Lock()
	c.token, c.nodeURL = "", ""
	c.mu.Unlock()
	return nil
}

// Call runs a shell command on the login node and returns its stdout.
func (c *Client) Call(ctx context.Context, command, workingDir string) (string, error) {
	payload, err := json.Marshal(map[string]string{"command": command, "workingdir": workingDir})
	if err != nil {
		return "", errors.InternalError(EntityUIT, "unable to encode command", err)
	}
	body, err := c.invokeNode(ctx, uitRequest{
		endpoint: execEndpoint,
		method:   http.MethodPost,
		body:     bytes.NewReader(payload),
		header:   map[string]string{"Content-Type": "application/json"},
	})
	if err != nil {
		return "", err
	}

	var resp execResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", errors.InternalError(EntityUIT, "unable to read response of "+command, err)
	}
	if resp.Success != successfulCall {
		return "", commandError(command, resp.Error+resp.Stderr)
	}
	return resp.Stdout, nil
}

func (c *Client) PutFile(ctx context.Context, localPath, remotePath string) error {
	content, err := afero.ReadFile(c.fs, localPath)
	if err != nil {
		return errors.TransferFailure(EntityUIT, "unable to read "+localPath, err)
	}
	return c.upload(ctx, content, remotePath)
}

func (c *Client) upload(ctx context.Context, content []byte, remotePath string) error {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	request, err := json.Marshal(map[string]string{"file": remotePath})
	if err != nil {
		return errors.InternalError(EntityUIT, "unable to encode upload request", err)
	}
	if err := form.WriteField("request", string(request)); err != nil {
		return errors.InternalError(EntityUIT, "unable to encode upload request", err)
	}
	part, err := form.CreateFormFile("file", path.Base(remotePath))
	if err != nil {
		return errors.InternalError(EntityUIT, "unable to encode upload request", err)
	}
	if _, err := part.Write(content); err != nil {
		return errors.InternalError(EntityUIT, "unable to encode upload request", err)
	}
	if err := form.Close(); err != nil {
		return errors.InternalError(EntityUIT, "unable to encode upload request", err)
	}

	body, err := c.invokeNode(ctx, uitRequest{
		endpoint: putFileEndpoint,
		method:   http.MethodPost,
		body:     &buf,
		header:   map[string]string{"Content-Type": form.FormDataContentType()},
	})
	if err != nil {
		return err
	}
	var resp execResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return errors.InternalError(EntityUIT, "unable to read upload response", err)
	}
	if resp.Success != successfulCall {
		return errors.TransferFailure(EntityUIT, fmt.Sprintf("unable to put %s: %s", remotePath, resp.Error), nil)
	}
	return nil
}

func (c *Client) GetFile(ctx context.Context, remotePath, localPath string) error {
	payload, err := json.Marshal(map[string]string{"file": remotePath})
	if err != nil {
		return errors.InternalError(EntityUIT, "unable to encode download request", err)
	}
	body, err := c.invokeNode(ctx, uitRequest{
		endpoint: getFileEndpoint,
		method:   http.MethodPost,
		body:     bytes.NewReader(payload),
		header:   map[string]string{"Content-Type": "application/json"},
	})
	if err != nil {
		return err
	}
	if err := afero.WriteFile(c.fs, localPath, body, 0o644); err != nil {
		return errors.TransferFailure(EntityUIT, "unable to write "+localPath, err)
	}
	return nil
}

func (c *Client) ListDir(ctx context.Context, dir string) ([]string, error) {
	payload, err := json.Marshal(map[string]string{"directory": dir})
	if err != nil {
		return nil, errors.InternalError(EntityUIT, "unable to encode list request", err)
	}
	body, err := c.invokeNode(ctx, uitRequest{
		endpoint: listDirEndpoint,
		method:   http.MethodPost,
		body:     bytes.NewReader(payload),
		header:   map[string]string{"Content-Type": "application/json"},
	})
	if err != nil {
		return nil, err
	}

	var resp listDirResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.InternalError(EntityUIT, "unable to read listing of "+dir, err)
	}
	if resp.Success != successfulCall {
		return nil, commandError("list "+dir, resp.Error)
	}
	names := make([]string, 0, len(resp.Files))
	for _, f := range resp.Files {
		names = append(names, f.Name)
	}
	return names, nil
}

func (c *Client) EnvVar(ctx context.Context, name string) (string, error) {
	out, err := c.Call(ctx, "echo $"+name, "/")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Submit uploads the script into the working directory and queues it with qsub.
func (c *Client) Submit(ctx context.Context, script, workingDir, remoteName string) (string, error) {
	if err := c.upload(ctx, []byte(script), path.Join(workingDir, remoteName)); err != nil {
		return "", err
	}
	out, err := c.Call(ctx, "qsub "+remoteName, workingDir)
	if err != nil {
		return "", err
	}
	jobID := strings.TrimSpace(out)
	if jobID == "" {
		return "", errors.SubmissionRejected(EntityUIT, "qsub returned no job id for "+remoteName, nil)
	}
	return jobID, nil
}

// Status returns the scheduler snapshot of a job, including its sub-jobs. A job the
// scheduler no longer knows, or whose qstat output can not be read, yields a nil snapshot.
func (c *Client) Status(ctx context.Context, jobID string) (*job.Qstat, error) {
	out, err := c.Call(ctx, "qstat -x -t -f -F json "+jobID, "/")
	if err != nil {
		if strings.Contains(err.Error(), unknownJobID) {
			return nil, nil
		}
		return nil, err
	}
	snapshot, err := parseQstat(jobID, out)
	if err != nil {
		c.l.Warn("unreadable qstat output", "job_id", jobID, "err", err)
		return nil, nil
	}
	return snapshot, nil
}

func (c *Client) Hold(ctx context.Context, jobID string) error {
	_, err := c.Call(ctx, "qhold "+jobID, "/")
	return err
}

func (c *Client) Release(ctx context.Context, jobID string) error {
	_, err := c.Call(ctx, "qrls "+jobID, "/")
	return err
}

func (c *Client) Terminate(ctx context.Context, jobID string) error {
	_, err := c.Call(ctx, "qdel "+jobID, "/")
	return err
}

func (c *Client) invokeNode(ctx context.Context, r uitRequest) ([]byte, error) {
	c.mu.RLock()
	token, nodeURL := c.token, c.nodeURL
	c.mu.RUnlock()
	if nodeURL == "" {
		return nil, errors.RemoteUnavailable(EntityUIT, "not connected to "+c.system, nil)
	}
	return c.invoke(ctx, nodeURL, token, r)
}

func (c *Client) invoke(ctx context.Context, baseURL, token string, r uitRequest) ([]byte, error) {
	request, err := http.NewRequestWithContext(ctx, r.method, baseURL+"/"+r.endpoint, r.body)
	if err != nil {
		return nil, fmt.Errorf("failed to build http request for %s due to %w", r.endpoint, err)
	}
	request.Header.Set(authHeader, token)
	for k, v := range r.header {
		request.Header.Set(k, v)
	}

	resp, err := c.client.Do(request)
	if err != nil {
		return nil, errors.RemoteUnavailable(EntityUIT, "failed to call "+r.endpoint, err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, errors.RemoteUnavailable(EntityUIT, "failed to read response of "+r.endpoint, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("status code received %d on calling %s: %s", resp.StatusCode, r.endpoint, strings.TrimSpace(string(body)))
		if strings.Contains(string(body), dpRouteError) {
			return nil, errors.TransientRoute(EntityUIT, msg, nil)
		}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, errors.RemoteUnavailable(EntityUIT, msg, nil)
		}
		return nil, errors.InternalError(EntityUIT, msg, nil)
	}
	return body, nil
}

func commandError(command, message string) error {
	message = strings.TrimSpace(message)
	if strings.Contains(message, dpRouteError) {
		return errors.TransientRoute(EntityUIT, fmt.Sprintf("'%s' failed: %s", command, message), nil)
	}
	return fmt.Errorf("'%s' failed: %s", command, message)
}

type qstatOutput struct {
	Jobs map[string]map[string]any `json:"Jobs"`
}

// parseQstat reads `qstat -f -F json` output. Sub-jobs of an array job are listed
// next to the parent, keyed as <seq>[<index>].<server>.
func parseQstat(jobID, raw string) (*job.Qstat, error) {
	var out qstatOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, errors.InternalError(EntityUIT, "unable to parse qstat output of "+jobID, err)
	}
	if len(out.Jobs) == 0 {
		return nil, nil
	}

	parentAttrs, ok := out.Jobs[jobID]
	if !ok {
		return nil, nil
	}
	snapshot := &job.Qstat{JobID: jobID, Status: stateOf(parentAttrs), Raw: parentAttrs}

	var subIDs []string
	for id := range out.Jobs {
		if id != jobID && isSubJobOf(id, jobID) {
			subIDs = append(subIDs, id)
		}
	}
	sort.Slice(subIDs, func(i, j int) bool {
		return subJobIndex(subIDs[i]) < subJobIndex(subIDs[j])
	})
	for _, id := range subIDs {
		snapshot.SubJobs = append(snapshot.SubJobs, &job.Qstat{JobID: id, Status: stateOf(out.Jobs[id]), Raw: out.Jobs[id]})
	}
	return snapshot, nil
}

func stateOf(attrs map[string]any) string {
	state, _ := attrs["job_state"].(string)
	return state
}

// isSubJobOf matches 1234[5].server against the parent 1234[].server.
func isSubJobOf(id, parentID string) bool {
	open := strings.Index(parentID, "[]")
	if open < 0 {
		return false
	}
	prefix, suffix := parentID[:open+1], parentID[open+2:]
	return strings.HasPrefix(id, prefix) && strings.HasSuffix(id, "]"+suffix)
}

func subJobIndex(id string) int {
	open, end := strings.Index(id, "["), strings.Index(id, "]")
	if open < 0 || end <= open {
		return -1
	}
	var idx int
	if _, err := fmt.Sscanf(id[open+1:end], "%d", &idx); err != nil {
		return -1
	}
	return idx
}
