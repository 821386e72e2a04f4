package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	hostdomain "github.com/smallbiznis/inventory/internal/host/domain"
	"github.com/smallbiznis/inventory/pkg/db/pagination"
	"go.uber.org/zap"
)

type listHostsQuery struct {
	DisplayName    string `form:"display_name"`
	FQDN           string `form:"fqdn"`
	HostnameOrID   string `form:"hostname_or_id"`
	InsightsID     string `form:"insights_id"`
	RegisteredWith string `form:"registered_with"`
	BranchID       string `form:"branch_id"`
	OrderBy        string `form:"order_by"`
	OrderHow       string `form:"order_how"`
	Page           string `form:"page"`
	PerPage        string `form:"per_page"`
}

type hostListResponse struct {
	pagination.PageInfo
	Results []hostdomain.HostView `json:"results"`
}

func newHostListResponse(resp hostdomain.ListHostsResponse) hostListResponse {
	return hostListResponse{
		PageInfo: resp.PageInfo,
		Results:  hostdomain.NewHostViews(resp.Results),
	}
}

func (s *Server) ListHosts(c *gin.Context) {
	var query listHostsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	page, perPage, err := parsePaging(query.Page, query.PerPage)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.hostSvc.List(c.Request.Context(), hostdomain.ListHostsRequest{
		Account:        accountFrom(c),
		DisplayName:    strings.TrimSpace(query.DisplayName),
		FQDN:           strings.TrimSpace(query.FQDN),
		HostnameOrID:   strings.TrimSpace(query.HostnameOrID),
		InsightsID:     strings.TrimSpace(query.InsightsID),
		RegisteredWith: strings.TrimSpace(query.RegisteredWith),
		BranchID:       strings.TrimSpace(query.BranchID),
		OrderBy:        strings.TrimSpace(query.OrderBy),
		OrderHow:       strings.TrimSpace(query.OrderHow),
		Page:           page,
		PerPage:        perPage,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, newHostListResponse(resp))
}

func (s *Server) GetHostsByIDs(c *gin.Context) {
	var query listHostsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	page, perPage, err := parsePaging(query.Page, query.PerPage)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.hostSvc.GetByIDs(c.Request.Context(), hostdomain.GetHostsRequest{
		Account:  accountFrom(c),
		IDs:      c.Param("host_id_list"),
		BranchID: strings.TrimSpace(query.BranchID),
		OrderBy:  strings.TrimSpace(query.OrderBy),
		OrderHow: strings.TrimSpace(query.OrderHow),
		Page:     page,
		PerPage:  perPage,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, newHostListResponse(resp))
}

type systemProfileResult struct {
	ID            string                 `json:"id"`
	SystemProfile map[string]interface{} `json:"system_profile"`
}

type systemProfileListResponse struct {
	pagination.PageInfo
	Results []systemProfileResult `json:"results"`
}

// GetHostSystemProfiles lists the system profile of each requested host with
// the same ordering and paging rules as GetHostsByIDs.
func (s *Server) GetHostSystemProfiles(c *gin.Context) {
	var query listHostsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	page, perPage, err := parsePaging(query.Page, query.PerPage)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.hostSvc.GetByIDs(c.Request.Context(), hostdomain.GetHostsRequest{
		Account:  accountFrom(c),
		IDs:      c.Param("host_id_list"),
		BranchID: strings.TrimSpace(query.BranchID),
		OrderBy:  strings.TrimSpace(query.OrderBy),
		OrderHow: strings.TrimSpace(query.OrderHow),
		Page:     page,
		PerPage:  perPage,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	results := make([]systemProfileResult, 0, len(resp.Results))
	for _, host := range resp.Results {
		profile := map[string]interface{}(host.SystemProfile)
		if profile == nil {
			profile = map[string]interface{}{}
		}
		results = append(results, systemProfileResult{ID: host.ID.String(), SystemProfile: profile})
	}

	c.JSON(http.StatusOK, systemProfileListResponse{PageInfo: resp.PageInfo, Results: results})
}

type addHostResult struct {
	Status int                  `json:"status"`
	Host   *hostdomain.HostView `json:"host,omitempty"`
	Title  string               `json:"title,omitempty"`
	Detail string               `json:"detail,omitempty"`
}

type addHostsResponse struct {
	Total  int             `json:"total"`
	Errors int             `json:"errors"`
	Data   []addHostResult `json:"data"`
}

// AddHosts runs every record of the batch through the ingest path on its own.
// Transient failures abort the batch; invalid records are reported per entry.
func (s *Server) AddHosts(c *gin.Context) {
	var raw []json.RawMessage
	if err := c.ShouldBindJSON(&raw); err != nil || len(raw) == 0 {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	account := accountFrom(c)
	resp := addHostsResponse{Total: len(raw), Data: make([]addHostResult, 0, len(raw))}

	for _, item := range raw {
		var rec hostdomain.HostRecord
		if err := json.Unmarshal(item, &rec); err != nil {
			resp.Errors++
			resp.Data = append(resp.Data, invalidHostResult("could not decode host"))
			continue
		}

		rec.Account = strings.TrimSpace(rec.Account)
		if rec.Account == "" {
			rec.Account = account
		}
		if rec.Account != account {
			resp.Errors++
			resp.Data = append(resp.Data, invalidHostResult("account does not match identity"))
			continue
		}

		result, err := s.hostSvc.AddHost(ctx, rec)
		if err != nil {
			if !isValidationError(err) {
				s.log.Warn("add host failed", zap.String("account", account), zap.Error(err))
				AbortWithError(c, err)
				return
			}
			resp.Errors++
			resp.Data = append(resp.Data, invalidHostResult(validationErrorDetail(err).Code))
			continue
		}

		s.obsMetrics.RecordHostIngest(ctx, "http", string(result.Action))

		status := http.StatusOK
		if result.Action == hostdomain.ActionCreate {
			status = http.StatusCreated
		}
		view := hostdomain.NewHostView(result.Host)
		resp.Data = append(resp.Data, addHostResult{Status: status, Host: &view})
	}

	c.JSON(http.StatusMultiStatus, resp)
}

func invalidHostResult(detail string) addHostResult {
	return addHostResult{
		Status: http.StatusBadRequest,
		Title:  "Invalid request",
		Detail: detail,
	}
}
