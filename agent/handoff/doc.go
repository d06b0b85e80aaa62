/*
包 handoff 实现协调者（Coordinator）与专家（Specialist）之间的交接式工作流引擎。

# 概述

一次运行（Run）从协调者开始：每一步由当前活跃 Agent 给出一个 Decision，
要么委派给工作流中的另一个 Agent，要么直接回复。专家回复后控制权回到
协调者；协调者直接回复则结束本次运行。引擎按顺序发出 Event，上层用
Reduce 把事件流归约为唯一的回复。

# 核心模型

  - AgentDefinition：Agent 名称、描述、指令与可用能力函数
  - Workflow：协调者 + 有序专家集合 + 终止条件 + 最大步数，构建后只读
  - Event：DelegationRequested / SpecialistCompleted / WorkflowCompleted
  - AgentRunner：调用一个 Agent 并返回 Decision，LLMRunner 为基于补全服务的实现
  - Engine：驱动状态机，处理协议违例（未知委派目标降级为直接回复）与超时

# 终止

终止条件在每次产生回复后对运行中的历史求值。默认策略 UserMessageLimit(10)
统计用户消息数，达到上限即结束，用于限制协调者与专家之间的往返。
MaxSteps 另行限制单次运行中的 Agent 调用次数。
*/
package handoff
