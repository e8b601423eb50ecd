package filesystem

import (
	"context"
	"io/ioutil"

	"nfvpe/derive-params/compute"
	"nfvpe/derive-params/util"
)

// IntrospectionRepository serves hardware facts from a saved introspection
// document, whatever host the request names.
type IntrospectionRepository struct {
	filename string
}

func NewIntrospectionRepository(filename string) *IntrospectionRepository {
	return &IntrospectionRepository{filename: util.ExpandHomeDir(filename)}
}

func (repo *IntrospectionRepository) Get(ctx context.Context, request *compute.Request) (*compute.HardwareFacts, error) {
	content, err := ioutil.ReadFile(repo.filename)
	if err != nil {
		return nil, util.NewError(err, "cannot read introspection file")
	}
	facts, err := compute.ParseIntrospection(content)
	if err != nil {
		return nil, util.NewError(err, "cannot parse introspection file %s", repo.filename)
	}
	return facts, nil
}
