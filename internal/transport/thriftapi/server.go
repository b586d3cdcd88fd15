package thriftapi

import (
	"github.com/apache/thrift/lib/go/thrift"

	"thetalkingdrone/internal/auth"
	"thetalkingdrone/internal/domain"
	"thetalkingdrone/internal/service"
)

type Server struct {
	server *thrift.TSimpleServer
}

func NewServer(addr string, svc *service.Service, authenticator *auth.Authenticator, defaultModel domain.DroneModel) (*Server, error) {
	transport, err := thrift.NewTServerSocket(addr)
	if err != nil {
		return nil, err
	}
	processor := NewProcessor(svc, authenticator, defaultModel)
	transportFactory := thrift.NewTFramedTransportFactoryConf(thrift.NewTTransportFactory(), &thrift.TConfiguration{})
	protocolFactory := thrift.NewTBinaryProtocolFactoryConf(&thrift.TConfiguration{})
	server := thrift.NewTSimpleServer4(processor, transport, transportFactory, protocolFactory)
	return &Server{server: server}, nil
}

func (s *Server) Serve() error {
	return s.server.Serve()
}

func (s *Server) Stop() error {
	return s.server.Stop()
}
