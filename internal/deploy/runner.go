package deploy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ikus060/udb/internal/model"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const tokenMask = "********"

// Runner executes scheduled deployments one at a time.
type Runner struct {
	ctx      context.Context
	cancel   context.CancelFunc
	db       *gorm.DB
	logger   *logrus.Entry
	interval time.Duration
	timeout  time.Duration
	baseURL  string
	kick     chan struct{}
}

// Config holds the configuration for the deployment runner
type Config struct {
	DB          *gorm.DB
	Logger      *logrus.Entry
	IntervalSec int
	TimeoutSec  int
	BaseURL     string
}

// NewRunner creates a deployment runner.
func NewRunner(cfg *Config) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		ctx:      ctx,
		cancel:   cancel,
		db:       cfg.DB,
		logger:   cfg.Logger.WithField("component", "deployment-runner"),
		interval: time.Duration(cfg.IntervalSec) * time.Second,
		timeout:  time.Duration(cfg.TimeoutSec) * time.Second,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		kick:     make(chan struct{}, 1),
	}
}

// Kick schedules an immediate pass.
func (r *Runner) Kick() {
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

// Start begins the execution loop.
func (r *Runner) Start() {
	r.logger.Info("Starting deployment runner...")
	ticker := time.NewTicker(r.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.runPending()
			case <-r.kick:
				r.runPending()
			case <-r.ctx.Done():
				r.logger.Info("Stopping deployment runner...")
				return
			}
		}
	}()
}

// Stop gracefully stops the runner
func (r *Runner) Stop() {
	r.cancel()
}

func (r *Runner) runPending() {
	for {
		var deployment model.Deployment
		err := r.db.Preload("Environment").
			Where("state = ?", model.DeploymentStateStarting).
			Order("id").First(&deployment).Error
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				r.logger.Errorf("Failed to fetch pending deployment: %v", err)
			}
			return
		}
		r.Run(&deployment)
		select {
		case <-r.ctx.Done():
			return
		default:
		}
	}
}

// Run executes one deployment script and records its outcome. The script
// is piped to a shell on stdin, runs in a throwaway working directory
// and in its own session so a timeout kills the whole process group.
// Output is captured incrementally and the token never appears in it.
func (r *Runner) Run(deployment *model.Deployment) {
	log := r.logger.WithField("deployment", deployment.ID)
	if deployment.Environment == nil {
		var env model.Environment
		if err := r.db.First(&env, deployment.EnvironmentID).Error; err != nil {
			r.finish(deployment, model.DeploymentStateFailure, "environment not found")
			return
		}
		deployment.Environment = &env
	}

	var owner model.User
	if deployment.OwnerID != nil {
		if err := r.db.First(&owner, *deployment.OwnerID).Error; err != nil {
			log.Warnf("Deployment owner %d not found: %v", *deployment.OwnerID, err)
		}
	}

	// Claim the row so a second runner skips it.
	res := r.db.Model(&model.Deployment{}).
		Where("id = ? AND state = ?", deployment.ID, model.DeploymentStateStarting).
		Update("state", model.DeploymentStateRunning)
	if res.Error != nil || res.RowsAffected == 0 {
		return
	}
	deployment.State = model.DeploymentStateRunning
	log.Info("Deployment started")

	workdir, err := os.MkdirTemp("", fmt.Sprintf("udb-deployment-%d-", deployment.ID))
	if err != nil {
		r.finish(deployment, model.DeploymentStateFailure, fmt.Sprintf("+ %v", err))
		return
	}
	defer os.RemoveAll(workdir)

	ctx, cancel := context.WithTimeout(r.ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "/bin/bash")
	cmd.Dir = workdir
	cmd.Stdin = strings.NewReader(normalizeScript(deployment.Environment.Script))
	cmd.Env = append(os.Environ(), buildEnv(deployment, &owner, r.baseURL)...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		r.finish(deployment, model.DeploymentStateFailure, fmt.Sprintf("+ %v", err))
		return
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pw.Close()
		pr.Close()
		r.finish(deployment, model.DeploymentStateFailure, fmt.Sprintf("+ %v", err))
		return
	}
	pw.Close()

	// Stream the combined output, flushing the masked buffer to the row
	// as it grows so the progress is visible while the script runs.
	var output bytes.Buffer
	chunk := make([]byte, 4096)
	for {
		n, readErr := pr.Read(chunk)
		if n > 0 {
			output.Write(chunk[:n])
			r.updateOutput(deployment, maskToken(output.String(), deployment.Token))
		}
		if readErr != nil {
			break
		}
	}
	pr.Close()

	err = cmd.Wait()
	text := maskToken(output.String(), deployment.Token)
	if ctx.Err() == context.DeadlineExceeded {
		text += "\n+ deployment timed out"
		err = ctx.Err()
	}

	if err != nil {
		log.Warnf("Deployment failed: %v", err)
		r.finish(deployment, model.DeploymentStateFailure, fmt.Sprintf("%s\n+ %v", text, err))
		return
	}
	log.Info("Deployment succeeded")
	r.finish(deployment, model.DeploymentStateSuccess, text)
}

// buildEnv assembles the variables the deployment script reads: its own
// identity and credentials and the snapshot location.
func buildEnv(deployment *model.Deployment, owner *model.User, baseURL string) []string {
	return []string{
		"UDB_USERID=" + strconv.Itoa(owner.ID),
		"UDB_USERNAME=" + owner.Username,
		"UDB_DEPLOYMENT_ID=" + strconv.Itoa(deployment.ID),
		"UDB_DEPLOYMENT_TOKEN=" + deployment.Token,
		"UDB_DEPLOYMENT_AUTH=" + owner.Username + ":" + deployment.Token,
		"UDB_DEPLOYMENT_MODEL_NAME=" + deployment.Environment.ModelNames,
		"UDB_DEPLOYMENT_DATA_URL=" + fmt.Sprintf("%s/api/v1/deployments/%d/data", baseURL, deployment.ID),
	}
}

// normalizeScript converts Windows line endings so a script pasted from
// anywhere runs under the shell unchanged.
func normalizeScript(script string) string {
	return strings.ReplaceAll(script, "\r\n", "\n")
}

func (r *Runner) updateOutput(deployment *model.Deployment, output string) {
	if err := r.db.Model(deployment).Update("output", output).Error; err != nil {
		r.logger.Errorf("Failed to record deployment %d output: %v", deployment.ID, err)
	}
	deployment.Output = output
}

func (r *Runner) finish(deployment *model.Deployment, state, output string) {
	updates := map[string]interface{}{
		"state":  state,
		"output": output,
	}
	if err := r.db.Model(deployment).Updates(updates).Error; err != nil {
		r.logger.Errorf("Failed to record deployment %d outcome: %v", deployment.ID, err)
	}
	deployment.State = state
	deployment.Output = output
}

// maskToken hides the deployment secret in the captured script output.
func maskToken(output, token string) string {
	if token == "" {
		return output
	}
	return strings.ReplaceAll(output, token, tokenMask)
}
