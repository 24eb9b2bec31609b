package storage

import (
	"context"
	"database/sql"

	"codemap/internal/reconcile"
	"codemap/internal/rules"
)

// ApplyResult counts what a committed plan actually wrote.
type ApplyResult struct {
	RepositoriesCreated int
	MappingsCreated     int
	RulesWritten        bool
}

// LoadState reads a project's derivation state: its code mappings, the
// repositories registered for the organization's integration and both rule
// lists.
func (db *DB) LoadState(ctx context.Context, projectID, organizationID, integrationID int64) (reconcile.State, error) {
	state := reconcile.State{ProjectID: projectID, OrganizationID: organizationID}

	mappings, err := listCodeMappings(ctx, db.conn, projectID)
	if err != nil {
		return state, err
	}
	for _, m := range mappings {
		state.Mappings = append(state.Mappings, reconcile.Mapping{
			RepoName:               m.RepositoryName,
			StackRoot:              m.StackRoot,
			SourceRoot:             m.SourceRoot,
			AutomaticallyGenerated: m.AutomaticallyGenerated,
		})
	}

	repos, err := NewRepositoryStore(db).ListByOrganization(ctx, organizationID, integrationID)
	if err != nil {
		return state, err
	}
	for _, r := range repos {
		state.Repositories = append(state.Repositories, r.Name)
	}

	if state.ManualRules, err = db.loadRules(ctx, projectID, ManualRulesKey); err != nil {
		return state, err
	}
	if state.AutomaticRules, err = db.loadRules(ctx, projectID, AutomaticRulesKey); err != nil {
		return state, err
	}
	return state, nil
}

func (db *DB) loadRules(ctx context.Context, projectID int64, key string) (rules.List, error) {
	text, err := getOption(ctx, db.conn, projectID, key)
	if err != nil {
		return nil, err
	}
	return rules.ParseList(text), nil
}

// Apply commits a plan in one transaction: new repositories, new code
// mappings (automatically generated) and the automatic rule list when it
// changed.
func (db *DB) Apply(ctx context.Context, plan reconcile.Plan) (ApplyResult, error) {
	var res ApplyResult
	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		res = ApplyResult{}
		repoIDs := make(map[string]int64)

		resolve := func(name, branch string) (int64, error) {
			if id, ok := repoIDs[name]; ok {
				return id, nil
			}
			repo, err := getRepository(ctx, tx, plan.OrganizationID, name, plan.IntegrationID)
			if err != nil {
				return 0, err
			}
			if repo == nil {
				repo = &Repository{
					OrganizationID: plan.OrganizationID,
					Name:           name,
					IntegrationID:  plan.IntegrationID,
					DefaultBranch:  branch,
				}
				if err := insertRepository(ctx, tx, repo); err != nil {
					return 0, err
				}
				res.RepositoriesCreated++
			}
			repoIDs[name] = repo.ID
			return repo.ID, nil
		}

		for _, r := range plan.NewRepositories {
			if _, err := resolve(r.Name, r.Branch); err != nil {
				return err
			}
		}

		for _, m := range plan.NewMappings {
			repoID, err := resolve(m.Repo.Name, m.Repo.Branch)
			if err != nil {
				return err
			}
			created, err := insertCodeMapping(ctx, tx, &CodeMapping{
				ProjectID:              plan.ProjectID,
				OrganizationID:         plan.OrganizationID,
				RepositoryID:           repoID,
				IntegrationID:          plan.IntegrationID,
				StackRoot:              m.StackRoot,
				SourceRoot:             m.SourceRoot,
				DefaultBranch:          m.Repo.Branch,
				AutomaticallyGenerated: true,
			})
			if err != nil {
				return err
			}
			if created {
				res.MappingsCreated++
			}
		}

		if plan.RulesChanged() {
			if err := setOption(ctx, tx, plan.ProjectID, AutomaticRulesKey, plan.AutomaticRules.String()); err != nil {
				return err
			}
			res.RulesWritten = true
		}
		return nil
	})
	if err != nil {
		return ApplyResult{}, err
	}

	db.logger.Debug("Applied derivation plan",
		"project_id", plan.ProjectID,
		"repositories_created", res.RepositoriesCreated,
		"mappings_created", res.MappingsCreated,
		"rules_written", res.RulesWritten,
	)
	return res, nil
}
