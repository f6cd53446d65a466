// Package contact 同步设备的通讯录和群列表
package contact

import (
	"context"

	"wechat_bridge_server/internal/dao/mysql/repository"
	"wechat_bridge_server/internal/dto/respond"
	"wechat_bridge_server/internal/infrastructure/vendorapi"
	"wechat_bridge_server/internal/model"
	"wechat_bridge_server/pkg/errorx"

	"go.uber.org/zap"
)

// CredentialProvider 平台凭证提供接口，由凭证服务实现
type CredentialProvider interface {
	CredentialFor(ctx context.Context, apiAccountId uint) (*model.WeChatApiAccount, error)
}

// Service 联系人/群组同步服务
type Service struct {
	repos   *repository.Repositories
	gateway vendorapi.Gateway
	creds   CredentialProvider
}

// NewService 创建同步服务
func NewService(repos *repository.Repositories, gateway vendorapi.Gateway, creds CredentialProvider) *Service {
	return &Service{repos: repos, gateway: gateway, creds: creds}
}

// loadOnlineAccount 同步要求设备在线
func (s *Service) loadOnlineAccount(deviceId string) (*model.WeChatAccount, error) {
	account, err := s.repos.Account.FindByDeviceId(deviceId)
	if err != nil {
		if errorx.IsNotFound(err) {
			return nil, errorx.Newf(errorx.CodeDeviceNotExist, "device %s not found", deviceId)
		}
		return nil, err
	}
	if !account.IsOnline() {
		return nil, errorx.Newf(errorx.CodeInvalidState, "device %s is not online", deviceId)
	}
	return account, nil
}

// SyncContacts 全量拉取并 upsert 设备的通讯录
// 单条 upsert 失败不中断整体同步，结果中反映成功条数
func (s *Service) SyncContacts(ctx context.Context, deviceId string) (*respond.SyncResult, error) {
	account, err := s.loadOnlineAccount(deviceId)
	if err != nil {
		return nil, err
	}
	cred, err := s.creds.CredentialFor(ctx, account.ApiAccountId)
	if err != nil {
		return nil, err
	}

	contacts, err := s.gateway.GetContactList(ctx, cred, deviceId)
	if err != nil {
		return nil, errorx.Wrap(err, errorx.CodeVendorError, "get contact list")
	}

	upserted := 0
	for i := range contacts {
		c := &model.WeChatContact{
			DeviceId: deviceId,
			WeChatId: contacts[i].WeChatId,
			Nickname: contacts[i].Nickname,
			Remark:   contacts[i].Remark,
			Avatar:   contacts[i].Avatar,
			Valid:    true,
		}
		if c.WeChatId == "" {
			continue
		}
		if err := s.repos.Contact.Upsert(c); err != nil {
			zap.L().Warn("upsert contact failed",
				zap.String("deviceId", deviceId),
				zap.String("weChatId", c.WeChatId), zap.Error(err))
			continue
		}
		upserted++
	}

	zap.L().Info("contacts synced",
		zap.String("deviceId", deviceId),
		zap.Int("total", len(contacts)), zap.Int("upserted", upserted))
	return &respond.SyncResult{DeviceId: deviceId, Total: len(contacts), Upserted: upserted}, nil
}

// SyncGroups 全量拉取并 upsert 设备的群列表
func (s *Service) SyncGroups(ctx context.Context, deviceId string) (*respond.SyncResult, error) {
	account, err := s.loadOnlineAccount(deviceId)
	if err != nil {
		return nil, err
	}
	cred, err := s.creds.CredentialFor(ctx, account.ApiAccountId)
	if err != nil {
		return nil, err
	}

	groups, err := s.gateway.GetGroupList(ctx, cred, deviceId)
	if err != nil {
		return nil, errorx.Wrap(err, errorx.CodeVendorError, "get group list")
	}

	upserted := 0
	for i := range groups {
		g := &model.WeChatGroup{
			DeviceId:    deviceId,
			GroupId:     groups[i].GroupId,
			GroupName:   groups[i].GroupName,
			OwnerWxId:   groups[i].OwnerWxId,
			MemberCount: groups[i].MemberCount,
			Avatar:      groups[i].Avatar,
			Valid:       true,
		}
		if g.GroupId == "" {
			continue
		}
		if err := s.repos.Group.Upsert(g); err != nil {
			zap.L().Warn("upsert group failed",
				zap.String("deviceId", deviceId),
				zap.String("groupId", g.GroupId), zap.Error(err))
			continue
		}
		upserted++
	}

	zap.L().Info("groups synced",
		zap.String("deviceId", deviceId),
		zap.Int("total", len(groups)), zap.Int("upserted", upserted))
	return &respond.SyncResult{DeviceId: deviceId, Total: len(groups), Upserted: upserted}, nil
}

// ListContacts 查询设备已同步的联系人
func (s *Service) ListContacts(deviceId string) ([]respond.ContactRespond, error) {
	contacts, err := s.repos.Contact.FindByDeviceId(deviceId)
	if err != nil {
		return nil, err
	}
	list := make([]respond.ContactRespond, 0, len(contacts))
	for i := range contacts {
		list = append(list, respond.ContactRespond{
			DeviceId: contacts[i].DeviceId,
			WeChatId: contacts[i].WeChatId,
			Nickname: contacts[i].Nickname,
			Remark:   contacts[i].Remark,
			Avatar:   contacts[i].Avatar,
		})
	}
	return list, nil
}

// ListGroups 查询设备已同步的群组
func (s *Service) ListGroups(deviceId string) ([]respond.GroupRespond, error) {
	groups, err := s.repos.Group.FindByDeviceId(deviceId)
	if err != nil {
		return nil, err
	}
	list := make([]respond.GroupRespond, 0, len(groups))
	for i := range groups {
		list = append(list, respond.GroupRespond{
			DeviceId:    groups[i].DeviceId,
			GroupId:     groups[i].GroupId,
			GroupName:   groups[i].GroupName,
			OwnerWxId:   groups[i].OwnerWxId,
			MemberCount: groups[i].MemberCount,
			Avatar:      groups[i].Avatar,
		})
	}
	return list, nil
}
