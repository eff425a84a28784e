package rnaget

import (
	"net/url"

	"github.com/aws/aws-lambda-go/events"
	"github.com/encode-dcc/serverless-rnaget/internal/models"
	"github.com/google/uuid"
)

// newTicket points at path with the request's query in canonical order.
// The same query always yields the same ticket id.
func (s *Service) newTicket(request events.APIGatewayProxyRequest, path string, format models.Format, units models.Units) models.Ticket {
	params := url.Values{}
	for k, v := range request.QueryStringParameters {
		params.Set(k, v)
	}
	params.Set("format", format.String())
	params.Set("units", units.String())

	ticketURL := s.baseURL(request) + path + "?" + params.Encode()

	return models.Ticket{
		ID:       uuid.NewSHA1(uuid.NameSpaceURL, []byte(ticketURL)).String(),
		URL:      ticketURL,
		Units:    units,
		FileType: format,
	}
}

func (s *Service) baseURL(request events.APIGatewayProxyRequest) string {
	if s.config.BaseURL != "" {
		return s.config.BaseURL
	}
	host := request.RequestContext.DomainName
	if host == "" {
		host = request.Headers["Host"]
	}
	return "https://" + host
}
