package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"grid-keeper/internal/config"
	"grid-keeper/internal/models"
	"grid-keeper/internal/rpc"
	"grid-keeper/services"
)

// remote sends status, bootstrap and shutdown to a running `grid-keeper server`
var remote bool

var errRemoteBusy = errors.New("the keeper server is busy with another bootstrap or shutdown")

func newRemoteClient() rpc.HTTPClient {
	cfg := rpc.ConfigFromServer(config.Get().Server)
	// bootstrap waits on readiness; the signal context bounds the request instead
	cfg.Timeout = 0
	return rpc.NewHTTPClient(cfg)
}

/**
 * Bootstrap through the keeper server
 * @returns {*services.BootstrapReport} Report computed by the server
 * @returns {error} Transport errors, errRemoteBusy, or the server's infrastructure failure
 */
func remoteBootstrap(ctx context.Context) (*services.BootstrapReport, error) {
	client := newRemoteClient()
	defer client.Close()
	rsp, err := client.Post(ctx, rpc.APIPrefix+"/bootstrap", nil)
	if err != nil {
		return nil, err
	}
	if rsp.StatusCode == http.StatusConflict {
		return nil, errRemoteBusy
	}
	report := &services.BootstrapReport{}
	if err := rsp.Decode(report); err != nil {
		return nil, err
	}
	if rsp.StatusCode == http.StatusInternalServerError {
		msg := rsp.Error
		if failed := report.Failed(); len(failed) > 0 {
			msg = failed[0].Error
		}
		return report, fmt.Errorf("keeper server: %s", msg)
	}
	return report, nil
}

func remoteShutdown(ctx context.Context) (*services.ShutdownReport, error) {
	client := newRemoteClient()
	defer client.Close()
	rsp, err := client.Post(ctx, rpc.APIPrefix+"/shutdown", nil)
	if err != nil {
		return nil, err
	}
	if rsp.StatusCode == http.StatusConflict {
		return nil, errRemoteBusy
	}
	report := &services.ShutdownReport{}
	if err := rsp.Decode(report); err != nil {
		return nil, err
	}
	if rsp.StatusCode != http.StatusOK {
		return report, fmt.Errorf("%d service(s) could not be stopped: %w", len(report.NotStoppable()), services.ErrTeardownResolution)
	}
	return report, nil
}

func remoteStatus(ctx context.Context, name string) ([]models.ServiceDetail, error) {
	client := newRemoteClient()
	defer client.Close()
	path := rpc.APIPrefix + "/services"
	if name != "" {
		path += "/" + name
	}
	rsp, err := client.Get(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	if rsp.Error != "" {
		return nil, errors.New(rsp.Error)
	}
	if name != "" {
		var d models.ServiceDetail
		if err := rsp.Decode(&d); err != nil {
			return nil, err
		}
		return []models.ServiceDetail{d}, nil
	}
	var details []models.ServiceDetail
	return details, rsp.Decode(&details)
}
