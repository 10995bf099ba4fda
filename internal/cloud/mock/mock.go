// Package mock is an in-memory provider used by tests and local
// development. It honors the same contracts as the real adapters,
// including idempotent instance deletion and S3-style bucket naming.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Riley94/multi-cloud-manager/internal/cloud"
)

type Service struct {
	mu        sync.Mutex
	nextID    int
	instances map[string]cloud.Instance // keyed by id
	buckets   map[string]time.Time      // name -> created
	nonEmpty  map[string]bool           // buckets that refuse deletion
}

func New() *Service {
	return &Service{
		instances: map[string]cloud.Instance{},
		buckets:   map[string]time.Time{},
		nonEmpty:  map[string]bool{},
	}
}

func (s *Service) ListInstances(ctx context.Context, region string) ([]cloud.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []cloud.Instance
	for _, inst := range s.instances {
		if inst.Region == region {
			out = append(out, inst)
		}
	}
	return out, nil
}

func (s *Service) CreateInstance(ctx context.Context, spec cloud.InstanceSpec) (*cloud.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inst := range s.instances {
		if inst.Name == spec.Name && inst.Region == spec.Region {
			return nil, cloud.E(cloud.CodeResourceConflict, "instance %q already exists", spec.Name)
		}
	}
	s.nextID++
	inst := cloud.Instance{
		ID:          fmt.Sprintf("i-mock-%04d", s.nextID),
		Name:        spec.Name,
		Region:      spec.Region,
		MachineType: spec.MachineType,
		Status:      cloud.StatusPending,
		Labels:      spec.Labels,
	}
	s.instances[inst.ID] = inst
	return &inst, nil
}

func (s *Service) ModifyInstance(ctx context.Context, id, region string, changes cloud.InstanceChanges) (*cloud.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instances[id]
	if !ok || inst.Region != region {
		return nil, cloud.E(cloud.CodeNotFound, "instance %s not found in %s", id, region)
	}
	if len(changes.Metadata) > 0 {
		return nil, cloud.E(cloud.CodeUnsupported, "mock instances have no metadata store")
	}
	switch changes.PowerState {
	case "":
	case "stop":
		inst.Status = cloud.StatusStopped
	case "start":
		inst.Status = cloud.StatusRunning
	default:
		return nil, cloud.E(cloud.CodeInvalidSpec, "power state must be %q or %q", "start", "stop")
	}
	if changes.MachineType != "" {
		if inst.Status == cloud.StatusRunning {
			return nil, cloud.E(cloud.CodeUnsupported, "machine type of a running instance cannot be changed")
		}
		inst.MachineType = changes.MachineType
	}
	if len(changes.Labels) > 0 {
		if inst.Labels == nil {
			inst.Labels = map[string]string{}
		}
		for k, v := range changes.Labels {
			inst.Labels[k] = v
		}
	}
	s.instances[id] = inst
	return &inst, nil
}

func (s *Service) DeleteInstance(ctx context.Context, id, region string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// deleting an absent instance is success, mirroring the real adapters
	delete(s.instances, id)
	return nil
}

func (s *Service) ListBuckets(ctx context.Context) ([]cloud.Bucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []cloud.Bucket
	for name, created := range s.buckets {
		out = append(out, cloud.Bucket{Name: name, CreatedAt: created})
	}
	return out, nil
}

func (s *Service) CreateBucket(ctx context.Context, name string) (*cloud.Bucket, error) {
	if !cloud.ValidBucketName(name) {
		return nil, cloud.E(cloud.CodeInvalidName, "bucket name %q violates the S3 naming rules", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.buckets[name]; ok {
		return nil, cloud.E(cloud.CodeNameTaken, "bucket name %q is already taken", name)
	}
	now := time.Now()
	s.buckets[name] = now
	return &cloud.Bucket{Name: name, CreatedAt: now}, nil
}

func (s *Service) DeleteBucket(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.buckets[name]; !ok {
		return cloud.E(cloud.CodeNotFound, "bucket %q not found", name)
	}
	if s.nonEmpty[name] {
		return cloud.E(cloud.CodeNotEmpty, "bucket %q is not empty", name)
	}
	delete(s.buckets, name)
	return nil
}

func (s *Service) ListImages(ctx context.Context, region string) ([]cloud.Image, error) {
	return []cloud.Image{
		{ID: "img-mock-1", Name: "debian-12", Description: "mock base image"},
		{ID: "img-mock-2", Name: "ubuntu-24.04", Description: "mock base image"},
	}, nil
}

// MarkNonEmpty makes DeleteBucket fail with not_empty; test hook.
func (s *Service) MarkNonEmpty(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nonEmpty[name] = true
}
