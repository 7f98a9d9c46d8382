package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/google/uuid"

	"github.com/driftsec/phishdeck/internal/domain"
	"github.com/driftsec/phishdeck/internal/store"
)

// SMTP profiles.

func (b *Backend) GetSMTPProfile(ctx context.Context, orgID, id string) (*domain.SMTPProfile, error) {
	var item smtpItem
	found, err := b.getItem(ctx, "get smtp profile", entitySMTPProfile,
		tenantPK(orgID), skSMTPPrefix+id, &item)
	if err != nil || !found {
		return nil, err
	}
	p := item.profile()
	return &p, nil
}

func (b *Backend) ListSMTPProfiles(ctx context.Context, orgID string) ([]domain.SMTPProfile, error) {
	out := []domain.SMTPProfile{}
	items, err := b.queryAll(ctx, b.partitionQuery(tenantPK(orgID), skSMTPPrefix))
	if err != nil {
		handled, werr := b.listDegrade("list smtp profiles", entitySMTPProfile, err)
		if handled {
			return out, nil
		}
		return nil, werr
	}

	var raw []smtpItem
	if err := attributevalue.UnmarshalListOfMaps(items, &raw); err != nil {
		return nil, fmt.Errorf("list smtp profiles: decode items: %w", err)
	}
	for _, item := range raw {
		out = append(out, item.profile())
	}
	return out, nil
}

func (b *Backend) CreateSMTPProfile(ctx context.Context, p *domain.SMTPProfile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Port == 0 {
		p.Port = 25
	}
	ts := now()
	p.CreatedAt, p.UpdatedAt = ts, ts
	return b.putItem(ctx, "create smtp profile", entitySMTPProfile, newSMTPItem(*p))
}

func (b *Backend) UpdateSMTPProfile(ctx context.Context, orgID, id string, u store.SMTPProfileUpdate) (*domain.SMTPProfile, error) {
	cur, err := b.GetSMTPProfile(ctx, orgID, id)
	if err != nil || cur == nil {
		return nil, err
	}

	changed := false
	if u.Name != nil {
		cur.Name = *u.Name
		changed = true
	}
	if u.Host != nil {
		cur.Host = *u.Host
		changed = true
	}
	if u.Port != nil {
		cur.Port = *u.Port
		changed = true
	}
	if u.Username != nil {
		cur.Username = *u.Username
		changed = true
	}
	if u.Password != nil {
		cur.Password = *u.Password
		changed = true
	}
	if u.FromAddress != nil {
		cur.FromAddress = *u.FromAddress
		changed = true
	}
	if u.IgnoreCertErrors != nil {
		cur.IgnoreCertErrors = *u.IgnoreCertErrors
		changed = true
	}

	if !changed {
		return cur, nil
	}
	cur.UpdatedAt = now()
	if err := b.putItem(ctx, "update smtp profile", entitySMTPProfile, newSMTPItem(*cur)); err != nil {
		return nil, err
	}
	return cur, nil
}

func (b *Backend) DeleteSMTPProfile(ctx context.Context, orgID, id string) (bool, error) {
	return b.deleteKey(ctx, "delete smtp profile", entitySMTPProfile,
		tenantPK(orgID), skSMTPPrefix+id)
}

// Email templates.

func (b *Backend) GetTemplate(ctx context.Context, orgID, id string) (*domain.EmailTemplate, error) {
	var item templateItem
	found, err := b.getItem(ctx, "get template", entityTemplate,
		tenantPK(orgID), skTmplPrefix+id, &item)
	if err != nil || !found {
		return nil, err
	}
	t := item.template()
	return &t, nil
}

func (b *Backend) ListTemplates(ctx context.Context, orgID string) ([]domain.EmailTemplate, error) {
	out := []domain.EmailTemplate{}
	items, err := b.queryAll(ctx, b.partitionQuery(tenantPK(orgID), skTmplPrefix))
	if err != nil {
		handled, werr := b.listDegrade("list templates", entityTemplate, err)
		if handled {
			return out, nil
		}
		return nil, werr
	}

	var raw []templateItem
	if err := attributevalue.UnmarshalListOfMaps(items, &raw); err != nil {
		return nil, fmt.Errorf("list templates: decode items: %w", err)
	}
	for _, item := range raw {
		out = append(out, item.template())
	}
	return out, nil
}

func (b *Backend) CreateTemplate(ctx context.Context, t *domain.EmailTemplate) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	ts := now()
	t.CreatedAt, t.UpdatedAt = ts, ts
	return b.putItem(ctx, "create template", entityTemplate, newTemplateItem(*t))
}

func (b *Backend) UpdateTemplate(ctx context.Context, orgID, id string, u store.TemplateUpdate) (*domain.EmailTemplate, error) {
	cur, err := b.GetTemplate(ctx, orgID, id)
	if err != nil || cur == nil {
		return nil, err
	}

	changed := false
	if u.Name != nil {
		cur.Name = *u.Name
		changed = true
	}
	if u.Subject != nil {
		cur.Subject = *u.Subject
		changed = true
	}
	if u.HTML != nil {
		cur.HTML = *u.HTML
		changed = true
	}
	if u.Text != nil {
		cur.Text = *u.Text
		changed = true
	}

	if !changed {
		return cur, nil
	}
	cur.UpdatedAt = now()
	if err := b.putItem(ctx, "update template", entityTemplate, newTemplateItem(*cur)); err != nil {
		return nil, err
	}
	return cur, nil
}

func (b *Backend) DeleteTemplate(ctx context.Context, orgID, id string) (bool, error) {
	return b.deleteKey(ctx, "delete template", entityTemplate, tenantPK(orgID), skTmplPrefix+id)
}

// Landing pages.

func (b *Backend) GetPage(ctx context.Context, orgID, id string) (*domain.LandingPage, error) {
	var item pageItem
	found, err := b.getItem(ctx, "get page", entityPage, tenantPK(orgID), skPagePrefix+id, &item)
	if err != nil || !found {
		return nil, err
	}
	p := item.page()
	return &p, nil
}

func (b *Backend) ListPages(ctx context.Context, orgID string) ([]domain.LandingPage, error) {
	out := []domain.LandingPage{}
	items, err := b.queryAll(ctx, b.partitionQuery(tenantPK(orgID), skPagePrefix))
	if err != nil {
		handled, werr := b.listDegrade("list pages", entityPage, err)
		if handled {
			return out, nil
		}
		return nil, werr
	}

	var raw []pageItem
	if err := attributevalue.UnmarshalListOfMaps(items, &raw); err != nil {
		return nil, fmt.Errorf("list pages: decode items: %w", err)
	}
	for _, item := range raw {
		out = append(out, item.page())
	}
	return out, nil
}

func (b *Backend) CreatePage(ctx context.Context, p *domain.LandingPage) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	ts := now()
	p.CreatedAt, p.UpdatedAt = ts, ts
	return b.putItem(ctx, "create page", entityPage, newPageItem(*p))
}

func (b *Backend) UpdatePage(ctx context.Context, orgID, id string, u store.PageUpdate) (*domain.LandingPage, error) {
	cur, err := b.GetPage(ctx, orgID, id)
	if err != nil || cur == nil {
		return nil, err
	}

	changed := false
	if u.Name != nil {
		cur.Name = *u.Name
		changed = true
	}
	if u.HTML != nil {
		cur.HTML = *u.HTML
		changed = true
	}
	if u.SourceURL != nil {
		cur.SourceURL = *u.SourceURL
		changed = true
	}
	if u.CaptureCredentials != nil {
		cur.CaptureCredentials = *u.CaptureCredentials
		changed = true
	}
	if u.CapturePasswords != nil {
		cur.CapturePasswords = *u.CapturePasswords
		changed = true
	}
	if u.RedirectURL != nil {
		cur.RedirectURL = *u.RedirectURL
		changed = true
	}

	if !changed {
		return cur, nil
	}
	cur.UpdatedAt = now()
	if err := b.putItem(ctx, "update page", entityPage, newPageItem(*cur)); err != nil {
		return nil, err
	}
	return cur, nil
}

func (b *Backend) DeletePage(ctx context.Context, orgID, id string) (bool, error) {
	return b.deleteKey(ctx, "delete page", entityPage, tenantPK(orgID), skPagePrefix+id)
}
