// Package cloud presents GCP and AWS as one uniform "cloud provider"
// capability: list/create/modify/delete instances and bucket operations,
// dispatched by provider name with vendor errors normalized into a stable
// taxonomy.
package cloud

import (
	"context"
	"regexp"
	"time"
)

// Provider identifies a vendor backend.
type Provider string

const (
	ProviderAWS  Provider = "aws"
	ProviderGCP  Provider = "gcp"
	ProviderMock Provider = "mock"
)

// Status is the normalized instance state. Vendor states are folded into
// these five values by each adapter's translation function.
type Status string

const (
	StatusRunning    Status = "running"
	StatusStopped    Status = "stopped"
	StatusTerminated Status = "terminated"
	StatusPending    Status = "pending"
	StatusUnknown    Status = "unknown"
)

// Instance is the uniform record for a virtual machine. It is populated
// fresh from a vendor response on every request; nothing is cached.
type Instance struct {
	ID          string            `json:"id"`
	Name        string            `json:"name,omitempty"`
	Region      string            `json:"region"`
	MachineType string            `json:"machineType"`
	Status      Status            `json:"status"`
	Labels      map[string]string `json:"labels,omitempty"`
}

// Bucket is the uniform record for a storage bucket.
type Bucket struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// Image is a bootable machine image offered by the vendor.
type Image struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

// InstanceSpec describes a new instance. Image and MachineType use the
// vendor's own identifiers (AMI id, GCE image link, t2.micro, n1-standard-1).
type InstanceSpec struct {
	Name        string            `json:"name"`
	Region      string            `json:"region"`
	MachineType string            `json:"machineType"`
	Image       string            `json:"image"`
	Labels      map[string]string `json:"labels,omitempty"`
}

// InstanceChanges is the narrow set of in-place mutations. Zero values mean
// "leave unchanged".
type InstanceChanges struct {
	// PowerState is "start" or "stop".
	PowerState  string            `json:"powerState,omitempty"`
	MachineType string            `json:"machineType,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
	// Metadata updates GCE instance metadata items. Vendors without an
	// instance metadata store reject it with unsupported.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ComputeService is the minimum capability every adapter implements.
type ComputeService interface {
	ListInstances(ctx context.Context, region string) ([]Instance, error)
	CreateInstance(ctx context.Context, spec InstanceSpec) (*Instance, error)
	ModifyInstance(ctx context.Context, id, region string, changes InstanceChanges) (*Instance, error)
	// DeleteInstance is idempotent in effect: a vendor not-found is success.
	DeleteInstance(ctx context.Context, id, region string) error
}

// BucketService is the optional bucket capability. Adapters that do not
// implement it cause bucket actions to fail with unsupported_action.
type BucketService interface {
	ListBuckets(ctx context.Context) ([]Bucket, error)
	CreateBucket(ctx context.Context, name string) (*Bucket, error)
	DeleteBucket(ctx context.Context, name string) error
}

// ImageService is the optional image-catalog capability backing the
// create-instance form.
type ImageService interface {
	ListImages(ctx context.Context, region string) ([]Image, error)
}

var bucketNameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

// ValidBucketName applies the S3 naming rules enforced locally: 3-63 chars,
// lowercase letters, digits, dots and hyphens, no leading/trailing separator,
// no consecutive dots.
func ValidBucketName(name string) bool {
	if !bucketNameRe.MatchString(name) {
		return false
	}
	for i := 1; i < len(name); i++ {
		if name[i] == '.' && name[i-1] == '.' {
			return false
		}
	}
	return true
}

var rfc1035Re = regexp.MustCompile(`^[a-z]([-a-z0-9]{0,61}[a-z0-9])?$`)

// ValidResourceName reports whether name satisfies the RFC1035 label rules
// GCE applies to instance names.
func ValidResourceName(name string) bool {
	return rfc1035Re.MatchString(name)
}
