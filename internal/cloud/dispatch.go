package cloud

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Riley94/multi-cloud-manager/internal/logging"
)

// Action names one uniform operation.
type Action string

const (
	ActionListInstances  Action = "instances.list"
	ActionCreateInstance Action = "instances.create"
	ActionModifyInstance Action = "instances.modify"
	ActionDeleteInstance Action = "instances.delete"
	ActionListBuckets    Action = "buckets.list"
	ActionCreateBucket   Action = "buckets.create"
	ActionDeleteBucket   Action = "buckets.delete"
	ActionListImages     Action = "images.list"
)

// Params carries the primitive values extracted at the presentation boundary.
// Which fields matter depends on the action.
type Params struct {
	Region      string            `json:"region,omitempty"`
	ID          string            `json:"id,omitempty"`
	Name        string            `json:"name,omitempty"`
	MachineType string            `json:"machineType,omitempty"`
	Image       string            `json:"image,omitempty"`
	PowerState  string            `json:"powerState,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// OperationResult is the normalized outcome returned to the presentation
// layer. It is a single-use value: rendered once, never stored as state.
type OperationResult struct {
	Success bool   `json:"success"`
	Code    Code   `json:"code,omitempty"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`

	Instance  *Instance  `json:"instance,omitempty"`
	Instances []Instance `json:"instances,omitempty"`
	Bucket    *Bucket    `json:"bucket,omitempty"`
	Buckets   []Bucket   `json:"buckets,omitempty"`
	Images    []Image    `json:"images,omitempty"`
}

// RegionChecker is the read-only Config Store contract the dispatcher
// consumes: which regions exist for a provider.
type RegionChecker interface {
	RegionsFor(provider string) []string
	IsValidRegion(provider, region string) bool
}

// AuditRecord is handed to the audit hook after every dispatch.
type AuditRecord struct {
	Time     time.Time
	Provider Provider
	Action   Action
	Region   string
	Target   string
	Success  bool
	Code     Code
	Message  string
}

var (
	auditMu sync.RWMutex
	auditFn func(AuditRecord)
)

// SetAudit registers a callback invoked once per dispatched operation.
// The db package uses this to persist the audit trail.
func SetAudit(fn func(AuditRecord)) {
	auditMu.Lock()
	defer auditMu.Unlock()
	auditFn = fn
}

// Dispatcher resolves (provider, action, params) into exactly one adapter
// invocation. It holds only immutable state and is safe for concurrent use.
type Dispatcher struct {
	services map[Provider]ComputeService
	regions  RegionChecker
	logger   logging.Logger
}

func NewDispatcher(services map[Provider]ComputeService, regions RegionChecker, logger logging.Logger) *Dispatcher {
	return &Dispatcher{services: services, regions: regions, logger: logger}
}

// Providers returns the registered provider names, sorted.
func (d *Dispatcher) Providers() []Provider {
	out := make([]Provider, 0, len(d.services))
	for p := range d.services {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Regions returns the configured regions for a registered provider.
func (d *Dispatcher) Regions(provider Provider) []string {
	if d.regions == nil {
		return nil
	}
	return d.regions.RegionsFor(string(provider))
}

// Supports reports whether the provider's adapter implements the optional
// capability behind the given action.
func (d *Dispatcher) Supports(provider Provider, action Action) bool {
	svc, ok := d.services[provider]
	if !ok {
		return false
	}
	switch action {
	case ActionListBuckets, ActionCreateBucket, ActionDeleteBucket:
		_, ok = svc.(BucketService)
	case ActionListImages:
		_, ok = svc.(ImageService)
	}
	return ok
}

// Dispatch performs a single synchronous adapter call and normalizes the
// outcome. It never retries and never lets a vendor error escape unmapped.
func (d *Dispatcher) Dispatch(ctx context.Context, provider Provider, action Action, p Params) OperationResult {
	svc, ok := d.services[provider]
	if !ok {
		return d.finish(provider, action, p, fail(E(CodeUnknownProvider, "unknown provider %q", provider)))
	}

	var res OperationResult
	switch action {
	case ActionListInstances:
		res = d.listInstances(ctx, provider, svc, p)
	case ActionCreateInstance:
		res = d.createInstance(ctx, provider, svc, p)
	case ActionModifyInstance:
		res = d.modifyInstance(ctx, provider, svc, p)
	case ActionDeleteInstance:
		res = d.deleteInstance(ctx, provider, svc, p)
	case ActionListBuckets, ActionCreateBucket, ActionDeleteBucket:
		res = d.bucketAction(ctx, provider, svc, action, p)
	case ActionListImages:
		res = d.listImages(ctx, provider, svc, p)
	default:
		res = fail(E(CodeUnsupportedAction, "unknown action %q", action))
	}
	return d.finish(provider, action, p, res)
}

func (d *Dispatcher) listInstances(ctx context.Context, provider Provider, svc ComputeService, p Params) OperationResult {
	if err := d.checkRegion(provider, p.Region); err != nil {
		return fail(err)
	}
	items, err := svc.ListInstances(ctx, p.Region)
	if err != nil {
		return fail(err)
	}
	return OperationResult{Success: true, Message: "instances listed", Instances: items}
}

func (d *Dispatcher) createInstance(ctx context.Context, provider Provider, svc ComputeService, p Params) OperationResult {
	if p.Name == "" {
		return fail(E(CodeInvalidSpec, "instance name is required"))
	}
	if p.MachineType == "" {
		return fail(E(CodeInvalidSpec, "machine type is required"))
	}
	if err := d.checkRegion(provider, p.Region); err != nil {
		return fail(err)
	}
	inst, err := svc.CreateInstance(ctx, InstanceSpec{
		Name:        p.Name,
		Region:      p.Region,
		MachineType: p.MachineType,
		Image:       p.Image,
		Labels:      p.Labels,
	})
	if err != nil {
		return fail(err)
	}
	return OperationResult{Success: true, Message: "instance " + p.Name + " created", Instance: inst}
}

func (d *Dispatcher) modifyInstance(ctx context.Context, provider Provider, svc ComputeService, p Params) OperationResult {
	if p.ID == "" {
		return fail(E(CodeInvalidSpec, "instance id is required"))
	}
	if err := d.checkRegion(provider, p.Region); err != nil {
		return fail(err)
	}
	inst, err := svc.ModifyInstance(ctx, p.ID, p.Region, InstanceChanges{
		PowerState:  p.PowerState,
		MachineType: p.MachineType,
		Labels:      p.Labels,
		Metadata:    p.Metadata,
	})
	if err != nil {
		return fail(err)
	}
	return OperationResult{Success: true, Message: "instance " + p.ID + " updated", Instance: inst}
}

func (d *Dispatcher) deleteInstance(ctx context.Context, provider Provider, svc ComputeService, p Params) OperationResult {
	if p.ID == "" {
		return fail(E(CodeInvalidSpec, "instance id is required"))
	}
	if err := d.checkRegion(provider, p.Region); err != nil {
		return fail(err)
	}
	if err := svc.DeleteInstance(ctx, p.ID, p.Region); err != nil {
		return fail(err)
	}
	return OperationResult{Success: true, Message: "instance " + p.ID + " deleted"}
}

func (d *Dispatcher) bucketAction(ctx context.Context, provider Provider, svc ComputeService, action Action, p Params) OperationResult {
	bs, ok := svc.(BucketService)
	if !ok {
		return fail(E(CodeUnsupportedAction, "provider %q does not support bucket operations", provider))
	}
	switch action {
	case ActionListBuckets:
		items, err := bs.ListBuckets(ctx)
		if err != nil {
			return fail(err)
		}
		return OperationResult{Success: true, Message: "buckets listed", Buckets: items}
	case ActionCreateBucket:
		if p.Name == "" {
			return fail(E(CodeInvalidName, "bucket name is required"))
		}
		b, err := bs.CreateBucket(ctx, p.Name)
		if err != nil {
			return fail(err)
		}
		return OperationResult{Success: true, Message: "bucket " + p.Name + " created", Bucket: b}
	default: // ActionDeleteBucket
		if p.Name == "" {
			return fail(E(CodeInvalidName, "bucket name is required"))
		}
		if err := bs.DeleteBucket(ctx, p.Name); err != nil {
			return fail(err)
		}
		return OperationResult{Success: true, Message: "bucket " + p.Name + " deleted"}
	}
}

func (d *Dispatcher) listImages(ctx context.Context, provider Provider, svc ComputeService, p Params) OperationResult {
	is, ok := svc.(ImageService)
	if !ok {
		return fail(E(CodeUnsupportedAction, "provider %q does not expose an image catalog", provider))
	}
	if err := d.checkRegion(provider, p.Region); err != nil {
		return fail(err)
	}
	items, err := is.ListImages(ctx, p.Region)
	if err != nil {
		return fail(err)
	}
	return OperationResult{Success: true, Message: "images listed", Images: items}
}

func (d *Dispatcher) checkRegion(provider Provider, region string) error {
	if region == "" {
		return E(CodeRegionInvalid, "region is required")
	}
	if d.regions != nil && !d.regions.IsValidRegion(string(provider), region) {
		return E(CodeRegionInvalid, "region %q is not configured for provider %q", region, provider)
	}
	return nil
}

func (d *Dispatcher) finish(provider Provider, action Action, p Params, res OperationResult) OperationResult {
	target := p.ID
	if target == "" {
		target = p.Name
	}
	if d.logger != nil {
		if res.Success {
			d.logger.Info("dispatch", "provider", provider, "action", action, "region", p.Region, "target", target)
		} else {
			d.logger.Error("dispatch failed", "provider", provider, "action", action, "region", p.Region, "target", target, "code", res.Code, "message", res.Message)
		}
	}
	auditMu.RLock()
	fn := auditFn
	auditMu.RUnlock()
	if fn != nil {
		fn(AuditRecord{
			Time:     time.Now(),
			Provider: provider,
			Action:   action,
			Region:   p.Region,
			Target:   target,
			Success:  res.Success,
			Code:     res.Code,
			Message:  res.Message,
		})
	}
	return res
}

func fail(err error) OperationResult {
	return OperationResult{
		Success: false,
		Code:    CodeOf(err),
		Message: messageFor(err),
		Detail:  Detail(err),
	}
}

// messageFor prefers the adapter's own message and falls back to a template
// keyed by code so identical failure classes read the same across vendors.
func messageFor(err error) string {
	var ce *Error
	if errors.As(err, &ce) && ce.Message != "" {
		return ce.Message
	}
	if tmpl, ok := messageTemplates[CodeOf(err)]; ok {
		return tmpl
	}
	return "operation failed"
}

var messageTemplates = map[Code]string{
	CodeUnknownProvider:     "unknown provider",
	CodeUnsupportedAction:   "action not supported by this provider",
	CodeProviderUnavailable: "provider API is unreachable or rejected the credentials",
	CodeRegionInvalid:       "region is not valid for this provider",
	CodeInvalidSpec:         "request is missing required fields or is malformed",
	CodeResourceConflict:    "a resource with this name already exists",
	CodeQuotaExceeded:       "provider rejected the request for quota or capacity reasons",
	CodeNotFound:            "resource not found",
	CodeUnsupported:         "the provider or instance state forbids this change",
	CodeNameTaken:           "bucket name is already taken",
	CodeInvalidName:         "name does not satisfy the vendor naming rules",
	CodeNotEmpty:            "bucket is not empty",
}
